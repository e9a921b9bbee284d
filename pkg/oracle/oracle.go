// Package oracle defines the similarity-oracle contract: the one capability
// the engine asks its host to supply. An oracle judges either a pair of
// normalized records (comparison) or a single record (quality
// self-assessment). The engine never assumes how the judgment is made, only
// that responses satisfy the schemas validated here.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ramsey-B/banksia/pkg/models"
)

// Oracle is the external scoring capability. Implementations must treat
// ctx cancellation and deadlines as hard stops.
type Oracle interface {
	// Compare judges whether two normalized records describe the same
	// patient. Called at most once per unordered pair per run.
	Compare(ctx context.Context, a, b *models.NormalizedRecord) (*ComparisonVerdict, error)
	// AssessQuality judges the completeness and validity of one record.
	AssessQuality(ctx context.Context, rec *models.NormalizedRecord) (*QualityVerdict, error)
}

// ComparisonVerdict is the required response shape for a pair comparison.
type ComparisonVerdict struct {
	SimilarityScore float64           `json:"similarity_score"`
	IsMatch         bool              `json:"is_match"`
	Confidence      models.Confidence `json:"confidence"`
	MatchReason     string            `json:"match_reason"`
}

// QualityVerdict is the required response shape for a quality assessment.
type QualityVerdict struct {
	QualityScore int      `json:"quality_score"`
	Completeness float64  `json:"completeness"`
	Issues       []string `json:"issues"`
}

// Sentinel errors for oracle failures. Both are per-unit outcomes: the
// affected pair or record is excluded from clustering and merging, never
// silently defaulted to a score. Retries belong to the host.
var (
	ErrUnavailable = errors.New("oracle unavailable")
	ErrTimeout     = errors.New("oracle call exceeded its time budget")
)

// SchemaViolationError reports an oracle response that did not match the
// required schema. It carries the raw response for diagnosis and is fatal to
// that unit of work only.
type SchemaViolationError struct {
	Reason string
	Raw    json.RawMessage
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("oracle response violated schema: %s", e.Reason)
}

// ClassifyFailure maps an oracle error to the failure taxonomy recorded in
// run reports.
func ClassifyFailure(err error) models.FailureKind {
	var schemaErr *SchemaViolationError
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.FailureOracleTimeout
	case errors.As(err, &schemaErr):
		return models.FailureSchemaViolation
	default:
		return models.FailureOracleUnavailable
	}
}

// ParseComparison validates a raw oracle response against the comparison
// schema. Missing keys, wrong types and out-of-range values are schema
// violations.
func ParseComparison(raw json.RawMessage) (*ComparisonVerdict, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &SchemaViolationError{Reason: "response is not a JSON object", Raw: raw}
	}

	for _, key := range []string{"similarity_score", "is_match", "confidence", "match_reason"} {
		if _, ok := fields[key]; !ok {
			return nil, &SchemaViolationError{Reason: "missing required key " + key, Raw: raw}
		}
	}

	var verdict ComparisonVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, &SchemaViolationError{Reason: err.Error(), Raw: raw}
	}

	if verdict.SimilarityScore < 0 || verdict.SimilarityScore > 1 {
		return nil, &SchemaViolationError{
			Reason: fmt.Sprintf("similarity_score %v outside [0,1]", verdict.SimilarityScore),
			Raw:    raw,
		}
	}
	if !verdict.Confidence.Valid() {
		return nil, &SchemaViolationError{
			Reason: fmt.Sprintf("confidence %q is not low/medium/high", verdict.Confidence),
			Raw:    raw,
		}
	}

	return &verdict, nil
}

// ParseQuality validates a raw oracle response against the quality schema.
func ParseQuality(raw json.RawMessage) (*QualityVerdict, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &SchemaViolationError{Reason: "response is not a JSON object", Raw: raw}
	}

	for _, key := range []string{"quality_score", "completeness", "issues"} {
		if _, ok := fields[key]; !ok {
			return nil, &SchemaViolationError{Reason: "missing required key " + key, Raw: raw}
		}
	}

	var verdict QualityVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, &SchemaViolationError{Reason: err.Error(), Raw: raw}
	}

	if verdict.QualityScore < 0 || verdict.QualityScore > 100 {
		return nil, &SchemaViolationError{
			Reason: fmt.Sprintf("quality_score %d outside [0,100]", verdict.QualityScore),
			Raw:    raw,
		}
	}
	if verdict.Completeness < 0 || verdict.Completeness > 1 {
		return nil, &SchemaViolationError{
			Reason: fmt.Sprintf("completeness %v outside [0,1]", verdict.Completeness),
			Raw:    raw,
		}
	}
	if verdict.Issues == nil {
		verdict.Issues = []string{}
	}

	return &verdict, nil
}
