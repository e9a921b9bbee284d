package models

import "time"

// ResolutionReport is the full output of one resolution run: golden records
// plus every intermediate judgment, enough to reconstruct the provenance of
// any golden record. It is the payload handed to the audit boundary.
type ResolutionReport struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	RecordCount int `json:"record_count"`
	PairCount   int `json:"pair_count"` // deduplicated candidate pairs

	Edges          []MatchEdge         `json:"edges"`
	PairFailures   []PairFailure       `json:"pair_failures,omitempty"`
	RecordFailures []RecordFailure     `json:"record_failures,omitempty"`
	Assessments    []QualityAssessment `json:"assessments"`
	Clusters       []EntityCluster     `json:"clusters"`
	GoldenRecords  []GoldenRecord      `json:"golden_records"`
}

// Resolved reports whether the run completed without any per-unit failures.
func (r *ResolutionReport) Resolved() bool {
	return len(r.PairFailures) == 0 && len(r.RecordFailures) == 0
}

// RunRequest is the request to trigger a resolution run.
type RunRequest struct {
	// AcceptThreshold overrides the configured clustering threshold when
	// set; must be within [0,1].
	AcceptThreshold *float64 `json:"accept_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}
