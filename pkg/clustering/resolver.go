// Package clustering resolves match edges into entity clusters by
// transitive closure: accepted edges connect records, and each connected
// component becomes one cluster. Transitivity is deliberate; if A matches B
// and B matches C, all three are the same patient even when A and C were
// never compared.
package clustering

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Ramsey-B/banksia/pkg/models"
)

// clusterNamespace salts cluster ids so they cannot collide with other
// uuid.NewSHA1 users sharing the OID namespace.
const clusterNamespace = "banksia:cluster:"

// Resolve partitions recordIDs into clusters using edges where IsMatch is
// true and the score meets threshold. Every record appears in exactly one
// cluster; records with no accepted edge become singletons. Output is
// deterministic: members sorted ascending, clusters sorted by their lowest
// member id.
func Resolve(edges []models.MatchEdge, recordIDs []string, threshold float64) []models.EntityCluster {
	parent := make(map[string]string, len(recordIDs))
	for _, id := range recordIDs {
		parent[id] = id
	}

	var find func(id string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	accepted := make([]models.MatchEdge, 0, len(edges))
	for _, edge := range edges {
		if !edge.IsMatch || edge.SimilarityScore < threshold {
			continue
		}
		if _, ok := parent[edge.ID1]; !ok {
			continue
		}
		if _, ok := parent[edge.ID2]; !ok {
			continue
		}
		accepted = append(accepted, edge)
		union(edge.ID1, edge.ID2)
	}

	members := make(map[string][]string)
	for _, id := range recordIDs {
		root := find(id)
		members[root] = append(members[root], id)
	}

	// Intra-cluster edge scores feed cluster confidence.
	scores := make(map[string][]float64)
	for _, edge := range accepted {
		root := find(edge.ID1)
		scores[root] = append(scores[root], edge.SimilarityScore)
	}

	clusters := make([]models.EntityCluster, 0, len(members))
	for root, ids := range members {
		sort.Strings(ids)
		clusters = append(clusters, models.EntityCluster{
			ClusterID:  ClusterID(ids[0]),
			RecordIDs:  ids,
			Confidence: meanScore(scores[root]),
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].RecordIDs[0] < clusters[j].RecordIDs[0]
	})
	return clusters
}

// ClusterID derives a stable cluster id from the lowest member record id, so
// an unchanged component keeps its id across runs.
func ClusterID(lowestRecordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(clusterNamespace+lowestRecordID)).String()
}

// MarkUnresolved flags every cluster containing a record from a failed pair.
// The cluster memberships may be incomplete; the host can re-run just these.
func MarkUnresolved(clusters []models.EntityCluster, failures []models.PairFailure) {
	if len(failures) == 0 {
		return
	}
	affected := make(map[string]bool, len(failures)*2)
	for _, f := range failures {
		affected[f.ID1] = true
		affected[f.ID2] = true
	}
	for i := range clusters {
		for _, id := range clusters[i].RecordIDs {
			if affected[id] {
				clusters[i].Unresolved = true
				break
			}
		}
	}
}

// meanScore returns the mean of accepted intra-cluster edge scores, or 1.0
// for a singleton (a record trivially matches itself).
func meanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
