// Package matching fans candidate pairs out to the similarity oracle and
// collects match edges. Exactly one oracle call is made per unordered pair
// per run; a failed call excludes that pair and is reported, never scored.
package matching

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/banksia/pkg/fingerprint"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/oracle"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// EdgeCache memoizes oracle verdicts by pair fingerprint so unchanged pairs
// skip the oracle on re-runs. Implementations must be safe for concurrent
// use.
type EdgeCache interface {
	Get(key string) (*oracle.ComparisonVerdict, bool)
	Put(key string, verdict *oracle.ComparisonVerdict)
}

// Config tunes the matcher.
type Config struct {
	// Concurrency bounds in-flight oracle calls (default 8).
	Concurrency int
	// OracleTimeout is the per-call time budget (default 30s).
	OracleTimeout time.Duration
}

// Matcher judges candidate pairs through the oracle.
type Matcher struct {
	oracle oracle.Oracle
	cache  EdgeCache
	logger *zap.Logger
	cfg    Config
}

// New creates a matcher. cache may be nil to disable memoization.
func New(o oracle.Oracle, cache EdgeCache, logger *zap.Logger, cfg Config) *Matcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 30 * time.Second
	}
	return &Matcher{
		oracle: o,
		cache:  cache,
		logger: logger.Named("matching"),
		cfg:    cfg,
	}
}

// Match compares every candidate pair and returns the edges plus the pairs
// the oracle could not judge. Edges are sorted by similarity descending,
// then ascending by (id1, id2), so output is deterministic regardless of
// completion order.
func (m *Matcher) Match(
	ctx context.Context,
	pairs []models.CandidatePair,
	records map[string]*models.NormalizedRecord,
) ([]models.MatchEdge, []models.PairFailure) {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.Match")
	defer span.End()

	var (
		mu       sync.Mutex
		edges    []models.MatchEdge
		failures []models.PairFailure
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.cfg.Concurrency)

	for _, pair := range pairs {
		group.Go(func() error {
			a, okA := records[pair.ID1]
			b, okB := records[pair.ID2]
			if !okA || !okB {
				// Blocker and matcher share the record set; a miss here
				// means the caller passed inconsistent inputs.
				m.logger.Warn("candidate pair references unknown record",
					zap.String("id1", pair.ID1),
					zap.String("id2", pair.ID2))
				return nil
			}

			verdict, err := m.compare(groupCtx, a, b)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, models.PairFailure{
					ID1:     pair.ID1,
					ID2:     pair.ID2,
					Kind:    oracle.ClassifyFailure(err),
					Message: err.Error(),
				})
				return nil
			}

			edges = append(edges, models.MatchEdge{
				ID1:             pair.ID1,
				ID2:             pair.ID2,
				SimilarityScore: verdict.SimilarityScore,
				IsMatch:         verdict.IsMatch,
				Confidence:      verdict.Confidence,
				Rationale:       verdict.MatchReason,
			})
			return nil
		})
	}

	// Workers only ever return nil; the group is used for bounded fan-out.
	_ = group.Wait()

	sortEdges(edges)
	sortFailures(failures)

	m.logger.Info("matching completed",
		zap.Int("pairs", len(pairs)),
		zap.Int("edges", len(edges)),
		zap.Int("failures", len(failures)))

	return edges, failures
}

func (m *Matcher) compare(ctx context.Context, a, b *models.NormalizedRecord) (*oracle.ComparisonVerdict, error) {
	var key string
	if m.cache != nil {
		key = fingerprint.Pair(fingerprint.Generate(a.Normalized), fingerprint.Generate(b.Normalized))
		if verdict, ok := m.cache.Get(key); ok {
			return verdict, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.OracleTimeout)
	defer cancel()

	verdict, err := m.oracle.Compare(callCtx, a, b)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Put(key, verdict)
	}
	return verdict, nil
}

func sortEdges(edges []models.MatchEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SimilarityScore != edges[j].SimilarityScore {
			return edges[i].SimilarityScore > edges[j].SimilarityScore
		}
		if edges[i].ID1 != edges[j].ID1 {
			return edges[i].ID1 < edges[j].ID1
		}
		return edges[i].ID2 < edges[j].ID2
	})
}

func sortFailures(failures []models.PairFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].ID1 != failures[j].ID1 {
			return failures[i].ID1 < failures[j].ID1
		}
		return failures[i].ID2 < failures[j].ID2
	})
}

// MemoryEdgeCache is a process-local EdgeCache.
type MemoryEdgeCache struct {
	mu       sync.RWMutex
	verdicts map[string]*oracle.ComparisonVerdict
}

// NewMemoryEdgeCache creates an empty in-memory cache.
func NewMemoryEdgeCache() *MemoryEdgeCache {
	return &MemoryEdgeCache{verdicts: make(map[string]*oracle.ComparisonVerdict)}
}

func (c *MemoryEdgeCache) Get(key string) (*oracle.ComparisonVerdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	verdict, ok := c.verdicts[key]
	return verdict, ok
}

func (c *MemoryEdgeCache) Put(key string, verdict *oracle.ComparisonVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[key] = verdict
}
