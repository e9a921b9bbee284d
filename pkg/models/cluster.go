package models

// EntityCluster is a maximal set of record ids connected by accepted match
// edges. Clusters are recomputed every run; the id is a stable function of
// the lowest member id, so unchanged input yields identical ids.
type EntityCluster struct {
	ClusterID string   `json:"cluster_id"`
	RecordIDs []string `json:"record_ids"` // sorted ascending
	// Confidence is the mean similarity of accepted intra-cluster edges,
	// or 1.0 for a singleton.
	Confidence float64 `json:"confidence"`
	// Unresolved marks clusters touched by a failed oracle call; the host
	// may re-run just these.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Contains reports whether the cluster includes the record id.
func (c *EntityCluster) Contains(recordID string) bool {
	for _, id := range c.RecordIDs {
		if id == recordID {
			return true
		}
	}
	return false
}
