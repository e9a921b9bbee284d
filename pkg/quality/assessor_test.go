package quality

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/oracle"
)

type stubOracle struct {
	verdicts map[string]*oracle.QualityVerdict
	errs     map[string]error
}

func (s *stubOracle) Compare(ctx context.Context, a, b *models.NormalizedRecord) (*oracle.ComparisonVerdict, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubOracle) AssessQuality(ctx context.Context, rec *models.NormalizedRecord) (*oracle.QualityVerdict, error) {
	if err, ok := s.errs[rec.RecordID]; ok {
		return nil, err
	}
	if verdict, ok := s.verdicts[rec.RecordID]; ok {
		return verdict, nil
	}
	return &oracle.QualityVerdict{Issues: []string{}}, nil
}

func rec(id string, fields map[string]string) *models.NormalizedRecord {
	return &models.NormalizedRecord{RecordID: id, Normalized: fields}
}

func TestAssess_OneAssessmentPerRecord(t *testing.T) {
	o := &stubOracle{verdicts: map[string]*oracle.QualityVerdict{
		"1": {QualityScore: 90, Completeness: 0.9, Issues: []string{}},
		"2": {QualityScore: 40, Completeness: 0.3, Issues: []string{"missing phone"}},
	}}
	a := New(o, zaptest.NewLogger(t), Config{})

	records := []*models.NormalizedRecord{
		rec("2", map[string]string{"patient_name": "x", "phone": "1", "email": "e"}),
		rec("1", map[string]string{"patient_name": "y", "phone": "2", "email": "e"}),
	}

	assessments, failures := a.Assess(context.Background(), records)
	require.Empty(t, failures)
	require.Len(t, assessments, 2)

	// Sorted by record id regardless of completion order.
	assert.Equal(t, "1", assessments[0].RecordID)
	assert.Equal(t, 90, assessments[0].QualityScore)
	assert.Equal(t, "2", assessments[1].RecordID)
	assert.Equal(t, []string{"missing phone"}, assessments[1].Issues)
}

func TestAssess_InsufficientDataFlaggedNotExcluded(t *testing.T) {
	o := &stubOracle{verdicts: map[string]*oracle.QualityVerdict{
		"sparse": {QualityScore: 10, Completeness: 0.05, Issues: []string{}},
	}}
	a := New(o, zaptest.NewLogger(t), Config{MinPopulatedFields: 3})

	assessments, failures := a.Assess(context.Background(), []*models.NormalizedRecord{
		rec("sparse", map[string]string{"patient_name": "x"}),
	})

	require.Empty(t, failures)
	require.Len(t, assessments, 1)
	assert.True(t, assessments[0].InsufficientData)
	assert.Equal(t, 10, assessments[0].QualityScore)
}

func TestAssess_OracleFailureYieldsFallbackAndFailure(t *testing.T) {
	o := &stubOracle{
		verdicts: map[string]*oracle.QualityVerdict{
			"ok": {QualityScore: 80, Completeness: 0.8, Issues: []string{}},
		},
		errs: map[string]error{
			"broken": fmt.Errorf("%w: boom", oracle.ErrUnavailable),
		},
	}
	a := New(o, zaptest.NewLogger(t), Config{})

	records := []*models.NormalizedRecord{
		rec("ok", map[string]string{"patient_name": "x", "phone": "1", "email": "e"}),
		rec("broken", map[string]string{"patient_name": "y", "phone": "2", "email": "e", "suburb": "s"}),
	}

	assessments, failures := a.Assess(context.Background(), records)

	// The failed record still gets an assessment; the run is not aborted.
	require.Len(t, assessments, 2)
	assert.Equal(t, "broken", assessments[0].RecordID)
	assert.Equal(t, 4.0/16, assessments[0].Completeness)
	assert.Equal(t, 12, assessments[0].QualityScore)
	assert.Contains(t, assessments[0].Issues, "quality assessment unavailable")

	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].RecordID)
	assert.Equal(t, models.FailureOracleUnavailable, failures[0].Kind)
}

func TestAssess_SchemaViolationClassified(t *testing.T) {
	o := &stubOracle{errs: map[string]error{
		"bad": &oracle.SchemaViolationError{Reason: "missing quality_score"},
	}}
	a := New(o, zaptest.NewLogger(t), Config{})

	_, failures := a.Assess(context.Background(), []*models.NormalizedRecord{
		rec("bad", map[string]string{"patient_name": "x"}),
	})

	require.Len(t, failures, 1)
	assert.Equal(t, models.FailureSchemaViolation, failures[0].Kind)
}
