// Package quality scores each record's completeness and validity through
// the similarity oracle, independently of pairwise matching. One oracle call
// per record; a failed call yields a conservative completeness-only fallback
// plus a reported failure, never a silent default.
package quality

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/oracle"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// patientFieldCount is the size of the full patient field profile, used for
// the completeness fallback when the oracle cannot assess a record.
const patientFieldCount = 16

// Config tunes the assessor.
type Config struct {
	// Concurrency bounds in-flight oracle calls (default 8).
	Concurrency int
	// OracleTimeout is the per-call time budget (default 30s).
	OracleTimeout time.Duration
	// MinPopulatedFields is the threshold below which a record is flagged
	// as having insufficient data (default 3). The flag never excludes the
	// record from matching.
	MinPopulatedFields int
}

// Assessor runs quality assessment over a record set.
type Assessor struct {
	oracle oracle.Oracle
	logger *zap.Logger
	cfg    Config
}

// New creates an assessor.
func New(o oracle.Oracle, logger *zap.Logger, cfg Config) *Assessor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 30 * time.Second
	}
	if cfg.MinPopulatedFields <= 0 {
		cfg.MinPopulatedFields = 3
	}
	return &Assessor{oracle: o, logger: logger.Named("quality"), cfg: cfg}
}

// Assess scores every record. Always returns one assessment per record,
// sorted by record id; records the oracle failed on get a completeness-only
// fallback and appear in the failure list.
func (a *Assessor) Assess(
	ctx context.Context,
	records []*models.NormalizedRecord,
) ([]models.QualityAssessment, []models.RecordFailure) {
	ctx, span := tracing.StartSpan(ctx, "quality.Assessor.Assess")
	defer span.End()

	var (
		mu          sync.Mutex
		assessments []models.QualityAssessment
		failures    []models.RecordFailure
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.cfg.Concurrency)

	for _, rec := range records {
		group.Go(func() error {
			assessment, err := a.assessOne(groupCtx, rec)

			mu.Lock()
			defer mu.Unlock()
			assessments = append(assessments, assessment)
			if err != nil {
				failures = append(failures, models.RecordFailure{
					RecordID: rec.RecordID,
					Kind:     oracle.ClassifyFailure(err),
					Message:  err.Error(),
				})
			}
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(assessments, func(i, j int) bool {
		return assessments[i].RecordID < assessments[j].RecordID
	})
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].RecordID < failures[j].RecordID
	})

	a.logger.Info("quality assessment completed",
		zap.Int("records", len(records)),
		zap.Int("failures", len(failures)))

	return assessments, failures
}

func (a *Assessor) assessOne(ctx context.Context, rec *models.NormalizedRecord) (models.QualityAssessment, error) {
	insufficient := rec.PopulatedCount() < a.cfg.MinPopulatedFields

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.OracleTimeout)
	defer cancel()

	verdict, err := a.oracle.AssessQuality(callCtx, rec)
	if err != nil {
		return fallbackAssessment(rec, insufficient), err
	}

	return models.QualityAssessment{
		RecordID:         rec.RecordID,
		QualityScore:     verdict.QualityScore,
		Completeness:     verdict.Completeness,
		Issues:           verdict.Issues,
		InsufficientData: insufficient,
	}, nil
}

// fallbackAssessment is the completeness-only floor used when the oracle
// cannot assess a record. Halving the score keeps oracle-assessed values
// winning survivorship ties against unassessed ones.
func fallbackAssessment(rec *models.NormalizedRecord, insufficient bool) models.QualityAssessment {
	completeness := float64(rec.PopulatedCount()) / patientFieldCount
	if completeness > 1 {
		completeness = 1
	}
	return models.QualityAssessment{
		RecordID:         rec.RecordID,
		QualityScore:     int(completeness * 50),
		Completeness:     completeness,
		Issues:           []string{"quality assessment unavailable"},
		InsufficientData: insufficient,
	}
}
