// Package resolution orchestrates full resolution runs over the persisted
// record set: load, resolve, persist, audit, project. The pipeline engine
// stays pure; everything stateful lives here.
package resolution

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/pipeline"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// RecordStore loads the records a run resolves.
type RecordStore interface {
	GetAll(ctx context.Context) ([]*models.Record, error)
}

// EdgeStore persists run verdicts and failures.
type EdgeStore interface {
	CreateBatch(ctx context.Context, runID string, edges []models.MatchEdge) error
	SaveFailures(ctx context.Context, runID string, pairFailures []models.PairFailure, recordFailures []models.RecordFailure) error
}

// GoldenStore persists synthesized golden records.
type GoldenStore interface {
	Upsert(ctx context.Context, golden *models.GoldenRecord) (*models.GoldenRecord, error)
	DeleteStale(ctx context.Context, runID string) (int64, error)
}

// OverrideStore loads steward pins for the merger.
type OverrideStore interface {
	ListAll(ctx context.Context) ([]models.StewardOverride, error)
}

// Auditor receives run lifecycle events. Emission only; storage belongs
// downstream.
type Auditor interface {
	EmitRunStarted(ctx context.Context, report *models.ResolutionReport) error
	EmitRunCompleted(ctx context.Context, report *models.ResolutionReport) error
	EmitGoldenUpdated(ctx context.Context, golden *models.GoldenRecord) error
}

// LineageProjector mirrors run output into the lineage graph.
type LineageProjector interface {
	ProjectRun(ctx context.Context, report *models.ResolutionReport) error
}

// Service runs and persists resolutions.
type Service struct {
	engine    *pipeline.Engine
	records   RecordStore
	edges     EdgeStore
	goldens   GoldenStore
	overrides OverrideStore
	auditor   Auditor
	projector LineageProjector
	logger    *zap.Logger

	mu         sync.RWMutex
	lastReport *models.ResolutionReport
}

// New creates a resolution service. auditor and projector may be nil when
// Kafka or the graph database are not configured.
func New(
	engine *pipeline.Engine,
	records RecordStore,
	edges EdgeStore,
	goldens GoldenStore,
	overrides OverrideStore,
	auditor Auditor,
	projector LineageProjector,
	logger *zap.Logger,
) *Service {
	return &Service{
		engine:    engine,
		records:   records,
		edges:     edges,
		goldens:   goldens,
		overrides: overrides,
		auditor:   auditor,
		projector: projector,
		logger:    logger.Named("resolution"),
	}
}

// Run executes one full resolution over every persisted record.
func (s *Service) Run(ctx context.Context, req models.RunRequest) (*models.ResolutionReport, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.Run")
	defer span.End()

	records, err := s.records.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	pins, err := s.overrides.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var report *models.ResolutionReport
	if req.AcceptThreshold != nil {
		report = s.engine.RunWithThreshold(ctx, records, pins, *req.AcceptThreshold)
	} else {
		report = s.engine.Run(ctx, records, pins)
	}

	if s.auditor != nil {
		if err := s.auditor.EmitRunStarted(ctx, report); err != nil {
			s.logger.Warn("failed to emit run.started", zap.Error(err))
		}
	}

	// Persistence failures are surfaced, but only after the report exists;
	// the resolution itself already succeeded.
	if err := s.edges.CreateBatch(ctx, report.RunID, report.Edges); err != nil {
		return report, err
	}
	if err := s.edges.SaveFailures(ctx, report.RunID, report.PairFailures, report.RecordFailures); err != nil {
		return report, err
	}

	for i := range report.GoldenRecords {
		stored, err := s.goldens.Upsert(ctx, &report.GoldenRecords[i])
		if err != nil {
			return report, err
		}
		report.GoldenRecords[i] = *stored

		if s.auditor != nil {
			if err := s.auditor.EmitGoldenUpdated(ctx, stored); err != nil {
				s.logger.Warn("failed to emit golden.updated",
					zap.String("cluster_id", stored.ClusterID),
					zap.Error(err))
			}
		}
	}

	if deleted, err := s.goldens.DeleteStale(ctx, report.RunID); err != nil {
		return report, err
	} else if deleted > 0 {
		s.logger.Info("retired stale golden records", zap.Int64("count", deleted))
	}

	if s.auditor != nil {
		if err := s.auditor.EmitRunCompleted(ctx, report); err != nil {
			s.logger.Warn("failed to emit run.completed", zap.Error(err))
		}
	}

	if s.projector != nil {
		if err := s.projector.ProjectRun(ctx, report); err != nil {
			s.logger.Warn("failed to project lineage graph", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	return report, nil
}

// LastReport returns the most recent run report, or nil before the first run.
func (s *Service) LastReport() *models.ResolutionReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}
