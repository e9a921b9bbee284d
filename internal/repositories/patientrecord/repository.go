// Package patientrecord persists ingested source records. Records are
// immutable snapshots; corrections arrive as new records, never updates.
package patientrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/fingerprint"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// Repository handles patient record persistence
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a new patient record repository
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.Named("patientrecord"),
	}
}

func isNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

type recordRow struct {
	RecordID     string    `db:"record_id"`
	SourceSystem string    `db:"source_system"`
	IngestedAt   time.Time `db:"ingested_at"`
	Fields       []byte    `db:"fields"`
	Fingerprint  string    `db:"fingerprint"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row *recordRow) toModel() (*models.Record, error) {
	rec := &models.Record{
		RecordID:     row.RecordID,
		SourceSystem: row.SourceSystem,
		IngestedAt:   row.IngestedAt,
	}
	if err := json.Unmarshal(row.Fields, &rec.Fields); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create stores a new record. A re-ingested record id with identical data is
// a no-op; the same id with different data is a conflict, since records are
// immutable.
func (r *Repository) Create(ctx context.Context, rec *models.Record) error {
	ctx, span := tracing.StartSpan(ctx, "patientrecord.Repository.Create")
	defer span.End()

	fields, err := rec.FieldsJSON()
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "record fields are not serializable")
	}
	fp := fingerprint.Generate(rec.Fields)

	existing, err := r.Get(ctx, rec.RecordID)
	if err != nil && !isNotFound(err) {
		return err
	}
	if existing != nil {
		if !fingerprint.HasChanged(fingerprint.Generate(existing.Fields), fp) {
			return nil
		}
		return httperror.NewHTTPError(http.StatusConflict, "record already exists with different data; ingest a correction under a new record id")
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("patient_records")
	sb.Cols("record_id", "source_system", "ingested_at", "fields", "fingerprint", "created_at")
	sb.Values(rec.RecordID, rec.SourceSystem, rec.IngestedAt.UTC(), fields, fp, time.Now().UTC())

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create patient record",
			zap.String("record_id", rec.RecordID),
			zap.Error(err))
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create patient record")
	}

	return nil
}

// Get retrieves one record by id
func (r *Repository) Get(ctx context.Context, recordID string) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "patientrecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_id", "source_system", "ingested_at", "fields", "fingerprint", "created_at")
	sb.From("patient_records")
	sb.Where(sb.Equal("record_id", recordID))

	query, args := sb.Build()
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "patient record not found")
		}
		r.logger.Error("failed to get patient record",
			zap.String("record_id", recordID),
			zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get patient record")
	}

	rec, err := row.toModel()
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decode patient record")
	}
	return rec, nil
}

// GetAll retrieves every record, ordered by record id. Resolution runs over
// the full set.
func (r *Repository) GetAll(ctx context.Context) ([]*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "patientrecord.Repository.GetAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_id", "source_system", "ingested_at", "fields", "fingerprint", "created_at")
	sb.From("patient_records")
	sb.OrderBy("record_id")

	query, args := sb.Build()
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list patient records", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list patient records")
	}

	records := make([]*models.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decode patient record")
		}
		records = append(records, rec)
	}
	return records, nil
}

// List retrieves a page of records ordered by ingestion time descending
func (r *Repository) List(ctx context.Context, page, pageSize int) (*models.RecordListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "patientrecord.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patient_records"); err != nil {
		r.logger.Error("failed to count patient records", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list patient records")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_id", "source_system", "ingested_at", "fields", "fingerprint", "created_at")
	sb.From("patient_records")
	sb.OrderBy("ingested_at DESC", "record_id")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list patient records", zap.Error(err))
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list patient records")
	}

	resp := &models.RecordListResponse{
		Items:      make([]models.Record, 0, len(rows)),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decode patient record")
		}
		resp.Items = append(resp.Items, *rec)
	}
	return resp, nil
}
