package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ramsey-B/banksia/pkg/matching"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
	"github.com/Ramsey-B/banksia/pkg/oracle"
	"github.com/Ramsey-B/banksia/pkg/quality"
)

func newEngine(t *testing.T, o oracle.Oracle) *Engine {
	logger := zaptest.NewLogger(t)
	return New(
		matching.New(o, nil, logger, matching.Config{Concurrency: 4}),
		quality.New(o, logger, quality.Config{Concurrency: 4}),
		logger,
		Config{AcceptThreshold: 0.8},
	)
}

func TestRun_ResolvesFormattingVariantsToOneGolden(t *testing.T) {
	engine := newEngine(t, oracle.NewRuleOracle(oracle.RuleConfig{}))
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	records := []*models.Record{
		{
			RecordID:     "1",
			SourceSystem: "stvincents",
			IngestedAt:   base,
			Fields: map[string]string{
				normalize.FieldMRN:      "MRN001234",
				normalize.FieldName:     "John Smith",
				normalize.FieldDOB:      "15/03/1985",
				normalize.FieldMedicare: "2428 9123 4567 8",
				normalize.FieldPhone:    "(04) 1234 5678",
				normalize.FieldPostcode: "2000",
			},
		},
		{
			RecordID:     "2",
			SourceSystem: "medicare-au",
			IngestedAt:   base.Add(time.Hour),
			Fields: map[string]string{
				normalize.FieldMRN:      "MR001234",
				normalize.FieldName:     "Jon Smith",
				normalize.FieldDOB:      "1985-03-15",
				normalize.FieldMedicare: "2428912345678",
				normalize.FieldEmail:    "jon.smith@example.com",
			},
		},
		{
			RecordID:     "3",
			SourceSystem: "stvincents",
			IngestedAt:   base,
			Fields: map[string]string{
				normalize.FieldName:     "Mary Jones",
				normalize.FieldDOB:      "02/11/1962",
				normalize.FieldMedicare: "9999888877776",
			},
		},
	}

	report := engine.Run(context.Background(), records, nil)

	require.True(t, report.Resolved())
	assert.Equal(t, 3, report.RecordCount)
	require.Len(t, report.Clusters, 2)

	duplicates := report.Clusters[0]
	assert.Equal(t, []string{"1", "2"}, duplicates.RecordIDs)
	assert.Equal(t, []string{"3"}, report.Clusters[1].RecordIDs)

	require.Len(t, report.GoldenRecords, 2)
	golden := report.GoldenRecords[0]

	// Formatting variants collapse to one canonical value.
	assert.Equal(t, "2428912345678", golden.Fields[normalize.FieldMedicare])
	assert.Equal(t, "1985-03-15", golden.Fields[normalize.FieldDOB])

	// Fields unique to either source survive into the golden record.
	assert.Equal(t, "jon.smith@example.com", golden.Fields[normalize.FieldEmail])
	assert.Contains(t, golden.Fields, normalize.FieldPhone)

	// Provenance covers the full cluster.
	assert.Equal(t, []string{"1", "2"}, golden.SourceRecordIDs)
	assert.Equal(t, report.RunID, golden.RunID)
	assert.False(t, golden.Unresolved)
}

// failingPairOracle wraps the rule oracle but times out one specific pair.
type failingPairOracle struct {
	*oracle.RuleOracle
	failID1, failID2 string
}

func (f *failingPairOracle) Compare(ctx context.Context, a, b *models.NormalizedRecord) (*oracle.ComparisonVerdict, error) {
	pair := models.NewCandidatePair(a.RecordID, b.RecordID)
	if pair == models.NewCandidatePair(f.failID1, f.failID2) {
		return nil, fmt.Errorf("%w: scorer stalled", oracle.ErrTimeout)
	}
	return f.RuleOracle.Compare(ctx, a, b)
}

func TestRun_PairFailureIsolatedToItsClusters(t *testing.T) {
	o := &failingPairOracle{
		RuleOracle: oracle.NewRuleOracle(oracle.RuleConfig{}),
		failID1:    "3",
		failID2:    "4",
	}
	engine := newEngine(t, o)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	dup := func(id, medicare, name string) *models.Record {
		return &models.Record{
			RecordID:   id,
			IngestedAt: base,
			Fields: map[string]string{
				normalize.FieldMedicare: medicare,
				normalize.FieldName:     name,
				normalize.FieldDOB:      "1985-03-15",
			},
		}
	}

	records := []*models.Record{
		dup("1", "1111111111111", "John Smith"),
		dup("2", "1111111111111", "John Smith"),
		dup("3", "2222222222222", "Mary Jones"),
		dup("4", "2222222222222", "Mary Jones"),
	}

	report := engine.Run(context.Background(), records, nil)

	// The failed pair is reported, not scored.
	require.Len(t, report.PairFailures, 1)
	assert.Equal(t, "3", report.PairFailures[0].ID1)
	assert.Equal(t, "4", report.PairFailures[0].ID2)
	assert.Equal(t, models.FailureOracleTimeout, report.PairFailures[0].Kind)
	for _, edge := range report.Edges {
		assert.NotEqual(t, models.NewCandidatePair("3", "4"), models.NewCandidatePair(edge.ID1, edge.ID2))
	}

	// Records 1 and 2 still resolve; 3 and 4 fall apart into unresolved
	// singletons the host can re-run.
	require.Len(t, report.Clusters, 3)
	assert.Equal(t, []string{"1", "2"}, report.Clusters[0].RecordIDs)
	assert.False(t, report.Clusters[0].Unresolved)
	assert.True(t, report.Clusters[1].Unresolved)
	assert.True(t, report.Clusters[2].Unresolved)

	assert.False(t, report.Resolved())
}

func TestRun_StewardPinHonored(t *testing.T) {
	engine := newEngine(t, oracle.NewRuleOracle(oracle.RuleConfig{}))

	records := []*models.Record{
		{
			RecordID:   "1",
			IngestedAt: time.Now(),
			Fields: map[string]string{
				normalize.FieldMedicare: "2428912345678",
				normalize.FieldName:     "John Smith",
				normalize.FieldPhone:    "0411111111",
			},
		},
	}

	report := engine.Run(context.Background(), records, nil)
	require.Len(t, report.GoldenRecords, 1)
	clusterID := report.GoldenRecords[0].ClusterID

	pinned := engine.Run(context.Background(), records, []models.StewardOverride{
		{ClusterID: clusterID, Field: normalize.FieldPhone, Value: "0400000000"},
	})
	require.Len(t, pinned.GoldenRecords, 1)
	assert.Equal(t, "0400000000", pinned.GoldenRecords[0].Fields[normalize.FieldPhone])
	assert.True(t, pinned.GoldenRecords[0].Provenance[normalize.FieldPhone].Pinned)
}

func TestRun_MalformedFieldNeverAbortsRun(t *testing.T) {
	engine := newEngine(t, oracle.NewRuleOracle(oracle.RuleConfig{}))

	records := []*models.Record{
		{
			RecordID:   "1",
			IngestedAt: time.Now(),
			Fields: map[string]string{
				normalize.FieldName:     "John Smith",
				normalize.FieldDOB:      "not-a-date",
				normalize.FieldMedicare: "2428912345678",
			},
		},
	}

	report := engine.Run(context.Background(), records, nil)

	require.Len(t, report.GoldenRecords, 1)
	_, ok := report.GoldenRecords[0].Fields[normalize.FieldDOB]
	assert.False(t, ok)

	// The malformed value surfaces as a quality issue, not an error.
	require.Len(t, report.Assessments, 1)
	assert.NotEmpty(t, report.Assessments[0].Issues)
}
