// Package override persists steward field pins. A pin survives
// recomputation until explicitly cleared.
package override

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// Repository handles steward override persistence
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a new override repository
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.Named("override"),
	}
}

// Pin stores a steward pin, replacing any existing pin on the same field
func (r *Repository) Pin(ctx context.Context, pin models.StewardOverride) error {
	ctx, span := tracing.StartSpan(ctx, "override.Repository.Pin")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("steward_overrides")
	sb.Cols("cluster_id", "field", "value", "pinned_by", "created_at")
	sb.Values(pin.ClusterID, pin.Field, pin.Value, pin.PinnedBy, time.Now().UTC())

	query, args := sb.Build()
	query += ` ON CONFLICT (cluster_id, field) DO UPDATE SET
		value = EXCLUDED.value,
		pinned_by = EXCLUDED.pinned_by,
		created_at = EXCLUDED.created_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to pin field",
			zap.String("cluster_id", pin.ClusterID),
			zap.String("field", pin.Field),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to pin field")
	}
	return nil
}

// Clear removes a pin, releasing the field back to the survivorship policy
func (r *Repository) Clear(ctx context.Context, clusterID, field string) error {
	ctx, span := tracing.StartSpan(ctx, "override.Repository.Clear")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("steward_overrides")
	db.Where(db.Equal("cluster_id", clusterID), db.Equal("field", field))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to clear pin",
			zap.String("cluster_id", clusterID),
			zap.String("field", field),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear pin")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "pin not found")
	}
	return nil
}

// ListAll retrieves every pin, ordered for deterministic merge input
func (r *Repository) ListAll(ctx context.Context) ([]models.StewardOverride, error) {
	ctx, span := tracing.StartSpan(ctx, "override.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("cluster_id", "field", "value", "pinned_by", "created_at")
	sb.From("steward_overrides")
	sb.OrderBy("cluster_id", "field")

	query, args := sb.Build()
	var pins []models.StewardOverride
	if err := r.db.SelectContext(ctx, &pins, query, args...); err != nil {
		r.logger.Error("failed to list pins", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pins")
	}
	return pins, nil
}

// ListByCluster retrieves the pins for one cluster
func (r *Repository) ListByCluster(ctx context.Context, clusterID string) ([]models.StewardOverride, error) {
	ctx, span := tracing.StartSpan(ctx, "override.Repository.ListByCluster")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("cluster_id", "field", "value", "pinned_by", "created_at")
	sb.From("steward_overrides")
	sb.Where(sb.Equal("cluster_id", clusterID))
	sb.OrderBy("field")

	query, args := sb.Build()
	var pins []models.StewardOverride
	if err := r.db.SelectContext(ctx, &pins, query, args...); err != nil {
		r.logger.Error("failed to list pins",
			zap.String("cluster_id", clusterID),
			zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pins")
	}
	return pins, nil
}
