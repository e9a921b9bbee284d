// Package matchedge persists oracle verdicts and per-unit failures for each
// resolution run, forming the audit trail behind every cluster decision.
package matchedge

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// Repository handles match edge persistence
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a new match edge repository
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.Named("matchedge"),
	}
}

// CreateBatch stores every edge from one run
func (r *Repository) CreateBatch(ctx context.Context, runID string, edges []models.MatchEdge) error {
	ctx, span := tracing.StartSpan(ctx, "matchedge.Repository.CreateBatch")
	defer span.End()

	if len(edges) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_edges")
	sb.Cols("id", "run_id", "id1", "id2", "similarity_score", "is_match", "confidence", "rationale", "review_status", "created_at")
	for _, edge := range edges {
		sb.Values(uuid.New().String(), runID, edge.ID1, edge.ID2, edge.SimilarityScore, edge.IsMatch, edge.Confidence, edge.Rationale, edge.ReviewStatus, now)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to store match edges",
			zap.String("run_id", runID),
			zap.Int("count", len(edges)),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store match edges")
	}

	r.logger.Debug("stored match edges",
		zap.String("run_id", runID),
		zap.Int("count", len(edges)))
	return nil
}

// ListByRun retrieves every edge from one run, highest similarity first
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.MatchEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "matchedge.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "run_id", "id1", "id2", "similarity_score", "is_match", "confidence", "rationale", "review_status", "created_at")
	sb.From("match_edges")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("similarity_score DESC", "id1", "id2")

	query, args := sb.Build()
	var edges []models.MatchEdge
	if err := r.db.SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.Error("failed to list match edges",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match edges")
	}
	return edges, nil
}

// UpdateReviewStatus records a steward decision on one edge
func (r *Repository) UpdateReviewStatus(ctx context.Context, edgeID string, status models.ReviewStatus) error {
	ctx, span := tracing.StartSpan(ctx, "matchedge.Repository.UpdateReviewStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_edges")
	sb.Set(sb.Assign("review_status", status))
	sb.Where(sb.Equal("id", edgeID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update review status",
			zap.String("edge_id", edgeID),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review status")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "match edge not found")
	}

	r.logger.Info("review status updated",
		zap.String("edge_id", edgeID),
		zap.String("status", string(status)))
	return nil
}

// SaveFailures stores the per-unit failures from one run. Pair failures use
// both id columns; record failures use id1 only.
func (r *Repository) SaveFailures(
	ctx context.Context,
	runID string,
	pairFailures []models.PairFailure,
	recordFailures []models.RecordFailure,
) error {
	ctx, span := tracing.StartSpan(ctx, "matchedge.Repository.SaveFailures")
	defer span.End()

	if len(pairFailures) == 0 && len(recordFailures) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("resolution_failures")
	sb.Cols("id", "run_id", "id1", "id2", "kind", "message", "created_at")
	for _, f := range pairFailures {
		sb.Values(uuid.New().String(), runID, f.ID1, f.ID2, f.Kind, f.Message, now)
	}
	for _, f := range recordFailures {
		sb.Values(uuid.New().String(), runID, f.RecordID, "", f.Kind, f.Message, now)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to store resolution failures",
			zap.String("run_id", runID),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store resolution failures")
	}
	return nil
}
