package models

import "time"

// Confidence is the oracle's qualitative confidence band for a verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether the confidence is one of the allowed bands.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// CandidatePair is an unordered pair of record ids selected for comparison.
// ID1 < ID2 always holds so a pair has exactly one representation.
type CandidatePair struct {
	ID1 string `json:"id1"`
	ID2 string `json:"id2"`
}

// NewCandidatePair builds a pair in canonical order.
func NewCandidatePair(a, b string) CandidatePair {
	if b < a {
		a, b = b, a
	}
	return CandidatePair{ID1: a, ID2: b}
}

// ReviewStatus tracks steward review of an edge. Runs assign auto_match,
// pending_review or dismissed; stewards move pending edges to confirmed or
// rejected.
type ReviewStatus string

const (
	ReviewAutoMatch ReviewStatus = "auto_match"
	ReviewPending   ReviewStatus = "pending_review"
	ReviewDismissed ReviewStatus = "dismissed"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewRejected  ReviewStatus = "rejected"
)

// MatchEdge is the oracle's judgment of one candidate pair. Edges are
// produced at most once per unordered pair per run; only the review status
// changes after a run.
type MatchEdge struct {
	ID              string       `json:"id,omitempty" db:"id"`
	RunID           string       `json:"run_id,omitempty" db:"run_id"`
	ID1             string       `json:"id1" db:"id1"`
	ID2             string       `json:"id2" db:"id2"`
	SimilarityScore float64      `json:"similarity_score" db:"similarity_score"`
	IsMatch         bool         `json:"is_match" db:"is_match"`
	Confidence      Confidence   `json:"confidence" db:"confidence"`
	Rationale       string       `json:"rationale" db:"rationale"`
	ReviewStatus    ReviewStatus `json:"review_status,omitempty" db:"review_status"`
	CreatedAt       time.Time    `json:"created_at,omitempty" db:"created_at"`
}

// ReviewRequest records a steward decision on a reviewed edge.
type ReviewRequest struct {
	Status ReviewStatus `json:"status" validate:"required,oneof=confirmed rejected"`
}

// FailureKind classifies a per-unit oracle failure.
type FailureKind string

const (
	FailureOracleTimeout     FailureKind = "oracle_timeout"
	FailureOracleUnavailable FailureKind = "oracle_unavailable"
	FailureSchemaViolation   FailureKind = "oracle_schema_violation"
)

// PairFailure marks a candidate pair the oracle could not judge. The pair is
// excluded from clustering and merging rather than defaulted to a score.
type PairFailure struct {
	ID1     string      `json:"id1"`
	ID2     string      `json:"id2"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// RecordFailure marks a record the oracle could not assess.
type RecordFailure struct {
	RecordID string      `json:"record_id"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
}
