// Package goldenrecord persists synthesized golden records, one per entity
// cluster. Recomputation upserts by cluster id and bumps the version.
package goldenrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// Repository handles golden record persistence
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a new golden record repository
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.Named("goldenrecord"),
	}
}

type goldenRow struct {
	ID              string         `db:"id"`
	ClusterID       string         `db:"cluster_id"`
	RunID           string         `db:"run_id"`
	Fields          []byte         `db:"fields"`
	Provenance      []byte         `db:"provenance"`
	Confidence      float64        `db:"confidence"`
	SourceRecordIDs pq.StringArray `db:"source_record_ids"`
	Unresolved      bool           `db:"unresolved"`
	Version         int            `db:"version"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row *goldenRow) toModel() (*models.GoldenRecord, error) {
	golden := &models.GoldenRecord{
		ID:              row.ID,
		ClusterID:       row.ClusterID,
		RunID:           row.RunID,
		Confidence:      row.Confidence,
		SourceRecordIDs: row.SourceRecordIDs,
		Unresolved:      row.Unresolved,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Fields, &golden.Fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.Provenance, &golden.Provenance); err != nil {
		return nil, err
	}
	return golden, nil
}

// Upsert stores the golden record for a cluster, replacing the previous
// synthesis and bumping the version.
func (r *Repository) Upsert(ctx context.Context, golden *models.GoldenRecord) (*models.GoldenRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.Upsert")
	defer span.End()

	fields, err := json.Marshal(golden.Fields)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "golden record fields are not serializable")
	}
	provenance, err := json.Marshal(golden.Provenance)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "golden record provenance is not serializable")
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("golden_records")
	sb.Cols("id", "cluster_id", "run_id", "fields", "provenance", "confidence", "source_record_ids", "unresolved", "version", "created_at", "updated_at")
	sb.Values(uuid.New().String(), golden.ClusterID, golden.RunID, fields, provenance, golden.Confidence, pq.StringArray(golden.SourceRecordIDs), golden.Unresolved, 1, now, now)

	query, args := sb.Build()
	query += ` ON CONFLICT (cluster_id) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		fields = EXCLUDED.fields,
		provenance = EXCLUDED.provenance,
		confidence = EXCLUDED.confidence,
		source_record_ids = EXCLUDED.source_record_ids,
		unresolved = EXCLUDED.unresolved,
		version = golden_records.version + 1,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to upsert golden record",
			zap.String("cluster_id", golden.ClusterID),
			zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to store golden record")
	}

	return r.GetByCluster(ctx, golden.ClusterID)
}

// GetByCluster retrieves the golden record for one cluster
func (r *Repository) GetByCluster(ctx context.Context, clusterID string) (*models.GoldenRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.GetByCluster")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "cluster_id", "run_id", "fields", "provenance", "confidence", "source_record_ids", "unresolved", "version", "created_at", "updated_at")
	sb.From("golden_records")
	sb.Where(sb.Equal("cluster_id", clusterID))

	query, args := sb.Build()
	var row goldenRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "golden record not found")
		}
		r.logger.Error("failed to get golden record",
			zap.String("cluster_id", clusterID),
			zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get golden record")
	}

	golden, err := row.toModel()
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decode golden record")
	}
	return golden, nil
}

// List retrieves golden records ordered by last update descending
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.GoldenRecord, int, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM golden_records"); err != nil {
		r.logger.Error("failed to count golden records", zap.Error(err))
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list golden records")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "cluster_id", "run_id", "fields", "provenance", "confidence", "source_record_ids", "unresolved", "version", "created_at", "updated_at")
	sb.From("golden_records")
	sb.OrderBy("updated_at DESC", "cluster_id")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var rows []goldenRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list golden records", zap.Error(err))
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list golden records")
	}

	records := make([]models.GoldenRecord, 0, len(rows))
	for _, row := range rows {
		golden, err := row.toModel()
		if err != nil {
			return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decode golden record")
		}
		records = append(records, *golden)
	}
	return records, total, nil
}

// DeleteStale removes golden records whose cluster disappeared in the given
// run (membership changes can retire a cluster id).
func (r *Repository) DeleteStale(ctx context.Context, runID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "goldenrecord.Repository.DeleteStale")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("golden_records")
	db.Where(db.NotEqual("run_id", runID))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete stale golden records",
			zap.String("run_id", runID),
			zap.Error(err))
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete stale golden records")
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}
