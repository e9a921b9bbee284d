// Package events emits resolution lifecycle events to the audit topic.
// Emission is the whole boundary: retention, storage and replay belong to
// downstream audit consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/kafka"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes resolution audit events.
type Emitter struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger *zap.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger.Named("events"),
	}
}

type runStartedPayload struct {
	SchemaVersion string    `json:"schema_version"`
	RecordCount   int       `json:"record_count"`
	StartedAt     time.Time `json:"started_at"`
}

// EmitRunStarted emits a run.started event.
func (e *Emitter) EmitRunStarted(ctx context.Context, report *models.ResolutionReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	data, err := json.Marshal(runStartedPayload{
		SchemaVersion: SchemaVersion,
		RecordCount:   report.RecordCount,
		StartedAt:     report.StartedAt,
	})
	if err != nil {
		return err
	}

	return e.publish(ctx, &kafka.AuditEvent{
		EventType: "run.started",
		RunID:     report.RunID,
		Data:      data,
	})
}

type runCompletedPayload struct {
	SchemaVersion  string                 `json:"schema_version"`
	RecordCount    int                    `json:"record_count"`
	PairCount      int                    `json:"pair_count"`
	ClusterCount   int                    `json:"cluster_count"`
	GoldenCount    int                    `json:"golden_count"`
	Resolved       bool                   `json:"resolved"`
	PairFailures   []models.PairFailure   `json:"pair_failures,omitempty"`
	RecordFailures []models.RecordFailure `json:"record_failures,omitempty"`
	CompletedAt    time.Time              `json:"completed_at"`
}

// EmitRunCompleted emits a run.completed event with the failure diagnostics
// a host needs to decide on a partial re-run.
func (e *Emitter) EmitRunCompleted(ctx context.Context, report *models.ResolutionReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	data, err := json.Marshal(runCompletedPayload{
		SchemaVersion:  SchemaVersion,
		RecordCount:    report.RecordCount,
		PairCount:      report.PairCount,
		ClusterCount:   len(report.Clusters),
		GoldenCount:    len(report.GoldenRecords),
		Resolved:       report.Resolved(),
		PairFailures:   report.PairFailures,
		RecordFailures: report.RecordFailures,
		CompletedAt:    report.CompletedAt,
	})
	if err != nil {
		return err
	}

	return e.publish(ctx, &kafka.AuditEvent{
		EventType: "run.completed",
		RunID:     report.RunID,
		Data:      data,
	})
}

type goldenUpdatedPayload struct {
	SchemaVersion   string                        `json:"schema_version"`
	ClusterID       string                        `json:"cluster_id"`
	Fields          map[string]string             `json:"fields"`
	Provenance      map[string]models.FieldOrigin `json:"provenance"`
	Confidence      float64                       `json:"confidence"`
	SourceRecordIDs []string                      `json:"source_record_ids"`
	Unresolved      bool                          `json:"unresolved,omitempty"`
	Version         int                           `json:"version"`
}

// EmitGoldenUpdated emits a golden.updated event carrying full provenance,
// pinned-field markers included.
func (e *Emitter) EmitGoldenUpdated(ctx context.Context, golden *models.GoldenRecord) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGoldenUpdated")
	defer span.End()

	data, err := json.Marshal(goldenUpdatedPayload{
		SchemaVersion:   SchemaVersion,
		ClusterID:       golden.ClusterID,
		Fields:          golden.Fields,
		Provenance:      golden.Provenance,
		Confidence:      golden.Confidence,
		SourceRecordIDs: golden.SourceRecordIDs,
		Unresolved:      golden.Unresolved,
		Version:         golden.Version,
	})
	if err != nil {
		return err
	}

	return e.publish(ctx, &kafka.AuditEvent{
		EventType: "golden.updated",
		RunID:     golden.RunID,
		SubjectID: golden.ClusterID,
		Data:      data,
	})
}

func (e *Emitter) publish(ctx context.Context, event *kafka.AuditEvent) error {
	if err := e.producer.PublishAuditEvent(ctx, event); err != nil {
		e.logger.Error("failed to emit audit event",
			zap.String("event_type", event.EventType),
			zap.String("run_id", event.RunID),
			zap.Error(err))
		return err
	}
	return nil
}
