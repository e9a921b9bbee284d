package models

// QualityAssessment is the derived quality judgment for one record.
// Recomputable, never mutated.
type QualityAssessment struct {
	RecordID     string   `json:"record_id" db:"record_id"`
	QualityScore int      `json:"quality_score" db:"quality_score"` // 0-100
	Completeness float64  `json:"completeness" db:"completeness"`   // 0-1
	Issues       []string `json:"issues"`
	// InsufficientData flags records with too few populated fields to
	// normalize meaningfully. The record still blocks, matches and merges.
	InsufficientData bool `json:"insufficient_data,omitempty"`
}
