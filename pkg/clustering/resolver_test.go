package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banksia/pkg/models"
)

func edge(a, b string, score float64, isMatch bool) models.MatchEdge {
	pair := models.NewCandidatePair(a, b)
	return models.MatchEdge{ID1: pair.ID1, ID2: pair.ID2, SimilarityScore: score, IsMatch: isMatch}
}

func TestResolve_TransitiveClosure(t *testing.T) {
	// A-B and B-C accepted; A-C never compared. All three cluster together.
	edges := []models.MatchEdge{
		edge("a", "b", 0.92, true),
		edge("b", "c", 0.88, true),
	}

	clusters := Resolve(edges, []string{"a", "b", "c", "d"}, 0.8)
	require.Len(t, clusters, 2)

	assert.Equal(t, []string{"a", "b", "c"}, clusters[0].RecordIDs)
	assert.InDelta(t, 0.90, clusters[0].Confidence, 0.0001)

	assert.Equal(t, []string{"d"}, clusters[1].RecordIDs)
	assert.Equal(t, 1.0, clusters[1].Confidence)
}

func TestResolve_ThresholdExcludesWeakEdges(t *testing.T) {
	t.Run("below threshold", func(t *testing.T) {
		edges := []models.MatchEdge{edge("a", "b", 0.75, true)}
		clusters := Resolve(edges, []string{"a", "b"}, 0.8)
		require.Len(t, clusters, 2)
	})

	t.Run("at threshold", func(t *testing.T) {
		edges := []models.MatchEdge{edge("a", "b", 0.8, true)}
		clusters := Resolve(edges, []string{"a", "b"}, 0.8)
		require.Len(t, clusters, 1)
		assert.Equal(t, []string{"a", "b"}, clusters[0].RecordIDs)
	})

	t.Run("non-match ignored regardless of score", func(t *testing.T) {
		edges := []models.MatchEdge{edge("a", "b", 0.99, false)}
		clusters := Resolve(edges, []string{"a", "b"}, 0.8)
		require.Len(t, clusters, 2)
	})
}

func TestResolve_EveryRecordInExactlyOneCluster(t *testing.T) {
	edges := []models.MatchEdge{
		edge("1", "2", 0.9, true),
		edge("3", "4", 0.85, true),
		edge("2", "1", 0.9, true), // duplicate representation is harmless
	}
	ids := []string{"1", "2", "3", "4", "5"}

	clusters := Resolve(edges, ids, 0.8)

	seen := make(map[string]int)
	for _, c := range clusters {
		for _, id := range c.RecordIDs {
			seen[id]++
		}
	}
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], "record %s", id)
	}
}

func TestResolve_DeterministicIDs(t *testing.T) {
	edges := []models.MatchEdge{edge("a", "b", 0.9, true)}

	first := Resolve(edges, []string{"a", "b"}, 0.8)
	second := Resolve(edges, []string{"b", "a"}, 0.8)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ClusterID, second[0].ClusterID)
	assert.Equal(t, ClusterID("a"), first[0].ClusterID)
}

func TestResolve_SingletonWhenRecordFormsNoBlock(t *testing.T) {
	clusters := Resolve(nil, []string{"lonely"}, 0.8)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"lonely"}, clusters[0].RecordIDs)
	assert.Equal(t, 1.0, clusters[0].Confidence)
	assert.False(t, clusters[0].Unresolved)
}

func TestMarkUnresolved(t *testing.T) {
	edges := []models.MatchEdge{edge("a", "b", 0.9, true)}
	clusters := Resolve(edges, []string{"a", "b", "c", "d"}, 0.8)
	require.Len(t, clusters, 3)

	MarkUnresolved(clusters, []models.PairFailure{
		{ID1: "b", ID2: "c", Kind: models.FailureOracleTimeout},
	})

	assert.True(t, clusters[0].Unresolved)  // contains b
	assert.True(t, clusters[1].Unresolved)  // contains c
	assert.False(t, clusters[2].Unresolved) // d untouched
}
