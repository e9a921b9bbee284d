// Package models defines the core data model for patient record resolution.
package models

import (
	"encoding/json"
	"time"
)

// Record is an immutable snapshot of one patient observation from a source
// system. Fields are nullable: a missing key means the field is absent.
// Corrections never mutate a record - they arrive as new records.
type Record struct {
	RecordID     string            `json:"record_id" db:"record_id"`
	SourceSystem string            `json:"source_system" db:"source_system"`
	IngestedAt   time.Time         `json:"ingested_at" db:"ingested_at"`
	Fields       map[string]string `json:"fields"`
}

// Field returns the raw value for a field and whether it is present.
// Whitespace-only values count as absent.
func (r *Record) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FieldIssue records a recovered normalization failure for one field.
// The field is treated as absent; the record itself always survives.
type FieldIssue struct {
	Field    string `json:"field"`
	RawValue string `json:"raw_value"`
	Reason   string `json:"reason"`
}

// NormalizedRecord is derived 1:1 from a Record. It keeps the raw mapping
// for reference and adds canonical values; it is recomputed deterministically
// and never persisted on its own.
type NormalizedRecord struct {
	RecordID   string            `json:"record_id"`
	Raw        map[string]string `json:"raw"`
	Normalized map[string]string `json:"normalized"`
	Issues     []FieldIssue      `json:"issues,omitempty"`
}

// Value returns the normalized value for a field and whether it is present.
func (n *NormalizedRecord) Value(field string) (string, bool) {
	v, ok := n.Normalized[field]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// PopulatedCount returns the number of non-absent normalized fields.
func (n *NormalizedRecord) PopulatedCount() int {
	count := 0
	for _, v := range n.Normalized {
		if v != "" {
			count++
		}
	}
	return count
}

// IngestRecordRequest is the request for ingesting a patient record,
// via HTTP or the Kafka input topic.
type IngestRecordRequest struct {
	RecordID     string            `json:"record_id" validate:"required"`
	SourceSystem string            `json:"source_system" validate:"required"`
	IngestedAt   *time.Time        `json:"ingested_at,omitempty"`
	Fields       map[string]string `json:"fields" validate:"required"`
}

// RecordListResponse is the response for listing ingested records.
type RecordListResponse struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// FieldsJSON marshals the field map for persistence.
func (r *Record) FieldsJSON() (json.RawMessage, error) {
	return json.Marshal(r.Fields)
}
