// Package pipeline composes the resolution stages into one in-memory run:
// normalize, block, match and assess in parallel, cluster, merge. The engine
// holds no storage or transport; hosts wrap it with persistence and audit
// emission.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/banksia/pkg/blocking"
	"github.com/Ramsey-B/banksia/pkg/clustering"
	"github.com/Ramsey-B/banksia/pkg/matching"
	"github.com/Ramsey-B/banksia/pkg/merging"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
	"github.com/Ramsey-B/banksia/pkg/quality"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// Config tunes a run.
type Config struct {
	// AcceptThreshold is the minimum similarity for an edge to join records
	// into a cluster (default 0.8).
	AcceptThreshold float64
	// ReviewThreshold is the minimum similarity for a non-accepted edge to be
	// queued for steward review (default 0.5).
	ReviewThreshold float64
}

// Engine runs the resolution pipeline.
type Engine struct {
	profile  normalize.Profile
	blocker  *blocking.Blocker
	matcher  *matching.Matcher
	assessor *quality.Assessor
	merger   *merging.Merger
	logger   *zap.Logger
	cfg      Config
}

// New creates an engine.
func New(
	matcher *matching.Matcher,
	assessor *quality.Assessor,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = 0.8
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.5
	}
	return &Engine{
		profile:  normalize.PatientProfile(),
		blocker:  blocking.New(),
		matcher:  matcher,
		assessor: assessor,
		merger:   merging.New(),
		logger:   logger.Named("pipeline"),
		cfg:      cfg,
	}
}

// Run resolves a record set into golden records. A failure for one pair or
// record never aborts the run; affected clusters are marked unresolved so a
// host can re-run just those.
func (e *Engine) Run(
	ctx context.Context,
	records []*models.Record,
	overrides []models.StewardOverride,
) *models.ResolutionReport {
	return e.RunWithThreshold(ctx, records, overrides, e.cfg.AcceptThreshold)
}

// RunWithThreshold runs with a per-run acceptance threshold override.
func (e *Engine) RunWithThreshold(
	ctx context.Context,
	records []*models.Record,
	overrides []models.StewardOverride,
	threshold float64,
) *models.ResolutionReport {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Engine.Run")
	defer span.End()

	report := &models.ResolutionReport{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		RecordCount: len(records),
	}

	normalized := e.profile.Records(records)

	recordsByID := make(map[string]*models.Record, len(records))
	normalizedByID := make(map[string]*models.NormalizedRecord, len(normalized))
	recordIDs := make([]string, 0, len(records))
	for i, rec := range records {
		recordsByID[rec.RecordID] = rec
		normalizedByID[rec.RecordID] = normalized[i]
		recordIDs = append(recordIDs, rec.RecordID)
	}

	pairs := blocking.CandidatePairs(e.blocker.Block(normalized))
	report.PairCount = len(pairs)

	e.logger.Info("run started",
		zap.String("run_id", report.RunID),
		zap.Int("records", len(records)),
		zap.Int("candidate_pairs", len(pairs)))

	// Matching and quality assessment share no state and run concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		report.Edges, report.PairFailures = e.matcher.Match(groupCtx, pairs, normalizedByID)
		return nil
	})
	group.Go(func() error {
		report.Assessments, report.RecordFailures = e.assessor.Assess(groupCtx, normalized)
		return nil
	})
	_ = group.Wait()

	for i := range report.Edges {
		edge := &report.Edges[i]
		switch {
		case edge.IsMatch && edge.SimilarityScore >= threshold:
			edge.ReviewStatus = models.ReviewAutoMatch
		case edge.SimilarityScore >= e.cfg.ReviewThreshold:
			edge.ReviewStatus = models.ReviewPending
		default:
			edge.ReviewStatus = models.ReviewDismissed
		}
	}

	report.Clusters = clustering.Resolve(report.Edges, recordIDs, threshold)
	clustering.MarkUnresolved(report.Clusters, report.PairFailures)

	assessmentsByID := make(map[string]models.QualityAssessment, len(report.Assessments))
	for _, assessment := range report.Assessments {
		assessmentsByID[assessment.RecordID] = assessment
	}

	for _, cluster := range report.Clusters {
		golden := e.merger.Merge(cluster, recordsByID, normalizedByID, assessmentsByID, overrides)
		golden.RunID = report.RunID
		report.GoldenRecords = append(report.GoldenRecords, *golden)
	}

	report.CompletedAt = time.Now().UTC()

	e.logger.Info("run completed",
		zap.String("run_id", report.RunID),
		zap.Int("clusters", len(report.Clusters)),
		zap.Int("golden_records", len(report.GoldenRecords)),
		zap.Int("pair_failures", len(report.PairFailures)),
		zap.Int("record_failures", len(report.RecordFailures)),
		zap.Bool("resolved", report.Resolved()))

	return report
}
