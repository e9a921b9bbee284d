package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
	"github.com/Ramsey-B/banksia/pkg/similarity"
)

// RuleOracle is a deterministic weighted field comparator. It is the default
// oracle for offline runs and tests; production hosts typically swap in the
// model-backed oracle without touching the matcher or merger.
type RuleOracle struct {
	weights        map[string]float64
	matchThreshold float64
}

// RuleConfig tunes the rule oracle.
type RuleConfig struct {
	// MatchThreshold is the aggregate score at or above which the verdict
	// is a match (default 0.8).
	MatchThreshold float64
}

// NewRuleOracle creates a rule oracle with the default patient field
// weights: identifiers dominate, demographics refine.
func NewRuleOracle(cfg RuleConfig) *RuleOracle {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.8
	}
	return &RuleOracle{
		matchThreshold: cfg.MatchThreshold,
		weights: map[string]float64{
			normalize.FieldMedicare: 0.35,
			normalize.FieldName:     0.25,
			normalize.FieldDOB:      0.25,
			normalize.FieldMRN:      0.05,
			normalize.FieldPhone:    0.05,
			normalize.FieldEmail:    0.05,
		},
	}
}

// Compare scores two normalized records over the weighted field set.
// Fields absent on either side contribute nothing.
func (o *RuleOracle) Compare(ctx context.Context, a, b *models.NormalizedRecord) (*ComparisonVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for field := range o.weights {
		va, okA := a.Value(field)
		vb, okB := b.Value(field)
		if !okA || !okB {
			continue
		}
		scores[field] = o.fieldScore(field, va, vb)
	}

	if len(scores) == 0 {
		return &ComparisonVerdict{
			SimilarityScore: 0,
			IsMatch:         false,
			Confidence:      models.ConfidenceLow,
			MatchReason:     "no comparable fields populated on both records",
		}, nil
	}

	score := similarity.WeightedScore(scores, o.weights)

	return &ComparisonVerdict{
		SimilarityScore: score,
		IsMatch:         score >= o.matchThreshold,
		Confidence:      confidenceBand(score, len(scores)),
		MatchReason:     describeScores(scores),
	}, nil
}

func (o *RuleOracle) fieldScore(field, a, b string) float64 {
	switch field {
	case normalize.FieldMedicare, normalize.FieldPhone, normalize.FieldEmail:
		if a == b {
			return 1.0
		}
		return 0.0
	case normalize.FieldDOB:
		if a == b {
			return 1.0
		}
		// Transposed day/month or single-digit typos still score partially.
		return similarity.Levenshtein(a, b) * 0.5
	case normalize.FieldMRN:
		return similarity.Levenshtein(a, b)
	default:
		return similarity.JaroWinkler(a, b)
	}
}

// coreFields are the fields counted for completeness, mirroring the
// assessment the stewardship dashboard surfaces.
var coreFields = []string{
	normalize.FieldMRN,
	normalize.FieldName,
	normalize.FieldDOB,
	normalize.FieldMedicare,
	normalize.FieldPhone,
	normalize.FieldEmail,
	normalize.FieldAddress,
	normalize.FieldSuburb,
	normalize.FieldState,
	normalize.FieldPostcode,
	normalize.FieldHealthFund,
	normalize.FieldBloodType,
	normalize.FieldGender,
}

// criticalFields raise an issue when missing.
var criticalFields = []string{
	normalize.FieldMedicare,
	normalize.FieldDOB,
	normalize.FieldName,
	normalize.FieldPhone,
}

// AssessQuality scores one record from completeness over the core field set
// plus normalization issues. Deterministic and recomputable.
func (o *RuleOracle) AssessQuality(ctx context.Context, rec *models.NormalizedRecord) (*QualityVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	populated := 0
	issues := []string{}
	for _, field := range coreFields {
		if _, ok := rec.Value(field); ok {
			populated++
		}
	}
	for _, field := range criticalFields {
		if _, ok := rec.Value(field); !ok {
			issues = append(issues, "missing "+strings.ReplaceAll(field, "_", " "))
		}
	}
	for _, issue := range rec.Issues {
		issues = append(issues, fmt.Sprintf("malformed %s: %q", issue.Field, issue.RawValue))
	}

	completeness := float64(populated) / float64(len(coreFields))

	// Completeness carries most of the score; each detected issue costs
	// ten points.
	score := int(completeness*100) - 10*len(issues)
	if score < 0 {
		score = 0
	}

	return &QualityVerdict{
		QualityScore: score,
		Completeness: completeness,
		Issues:       issues,
	}, nil
}

func confidenceBand(score float64, comparedFields int) models.Confidence {
	switch {
	case score >= 0.9 && comparedFields >= 3:
		return models.ConfidenceHigh
	case score >= 0.7:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func describeScores(scores map[string]float64) string {
	fields := make([]string, 0, len(scores))
	for field := range scores {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if scores[fields[i]] != scores[fields[j]] {
			return scores[fields[i]] > scores[fields[j]]
		}
		return fields[i] < fields[j]
	})

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		switch {
		case scores[field] == 1.0:
			parts = append(parts, field+" exact")
		case scores[field] == 0.0:
			parts = append(parts, field+" differs")
		default:
			parts = append(parts, fmt.Sprintf("%s %.2f", field, scores[field]))
		}
	}
	return strings.Join(parts, "; ")
}
