package models

import "time"

// FieldOrigin records where a golden record field value came from.
type FieldOrigin struct {
	RecordID string `json:"record_id,omitempty"`
	// Pinned marks a steward-supplied value; it is not recomputable until
	// the pin is cleared.
	Pinned bool `json:"pinned,omitempty"`
}

// GoldenRecord is the synthesized authoritative record for one entity
// cluster. Every field value traces to a contributing record or a steward
// pin - no value is ever invented.
type GoldenRecord struct {
	ID              string                 `json:"id,omitempty" db:"id"`
	ClusterID       string                 `json:"cluster_id" db:"cluster_id"`
	RunID           string                 `json:"run_id,omitempty" db:"run_id"`
	Fields          map[string]string      `json:"fields"`
	Provenance      map[string]FieldOrigin `json:"provenance"`
	Confidence      float64                `json:"confidence" db:"confidence"`
	SourceRecordIDs []string               `json:"source_record_ids"` // full cluster membership
	Unresolved      bool                   `json:"unresolved,omitempty" db:"unresolved"`
	Version         int                    `json:"version,omitempty" db:"version"`
	CreatedAt       time.Time              `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at,omitempty" db:"updated_at"`
}

// StewardOverride pins one golden record field to a human-supplied value.
// Pins survive recomputation until explicitly cleared.
type StewardOverride struct {
	ClusterID string    `json:"cluster_id" db:"cluster_id"`
	Field     string    `json:"field" db:"field"`
	Value     string    `json:"value" db:"value"`
	PinnedBy  *string   `json:"pinned_by,omitempty" db:"pinned_by"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
}

// PinFieldRequest is the request to pin a golden record field.
type PinFieldRequest struct {
	Value    string  `json:"value" validate:"required"`
	PinnedBy *string `json:"pinned_by,omitempty"`
}
