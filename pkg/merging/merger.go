// Package merging synthesizes one golden record per entity cluster. The
// merge is a pure function of the cluster, its records, their quality
// assessments and steward pins: deterministic, re-runnable, and it never
// calls the oracle. No field value is ever invented; everything traces to a
// contributing record or a pin.
package merging

import (
	"sort"
	"time"

	"github.com/Ramsey-B/banksia/pkg/models"
)

// Merger applies the survivorship policy.
type Merger struct{}

// New creates a merger.
func New() *Merger {
	return &Merger{}
}

// Merge builds the golden record for one cluster. Field policy, in order:
// steward pin, highest quality score among records that populate the field,
// latest ingested_at, lowest record id. A field no record supplies stays
// absent. source_record_ids is always the full membership, whoever won.
func (m *Merger) Merge(
	cluster models.EntityCluster,
	records map[string]*models.Record,
	normalized map[string]*models.NormalizedRecord,
	assessments map[string]models.QualityAssessment,
	pins []models.StewardOverride,
) *models.GoldenRecord {
	golden := &models.GoldenRecord{
		ClusterID:       cluster.ClusterID,
		Fields:          make(map[string]string),
		Provenance:      make(map[string]models.FieldOrigin),
		Confidence:      cluster.Confidence,
		SourceRecordIDs: append([]string(nil), cluster.RecordIDs...),
		Unresolved:      cluster.Unresolved,
	}

	for _, field := range clusterFields(cluster, normalized) {
		winner := m.selectValue(field, cluster, records, normalized, assessments)
		if winner == nil {
			continue
		}
		golden.Fields[field] = winner.value
		golden.Provenance[field] = models.FieldOrigin{RecordID: winner.recordID}
	}

	for _, pin := range pins {
		if pin.ClusterID != cluster.ClusterID {
			continue
		}
		golden.Fields[pin.Field] = pin.Value
		golden.Provenance[pin.Field] = models.FieldOrigin{Pinned: true}
	}

	return golden
}

type candidate struct {
	recordID string
	value    string
}

// selectValue picks the surviving value for one field, or nil when no
// cluster member populates it.
func (m *Merger) selectValue(
	field string,
	cluster models.EntityCluster,
	records map[string]*models.Record,
	normalized map[string]*models.NormalizedRecord,
	assessments map[string]models.QualityAssessment,
) *candidate {
	var winner *candidate
	better := func(id string) bool {
		if winner == nil {
			return true
		}
		qa, qb := assessments[winner.recordID].QualityScore, assessments[id].QualityScore
		if qa != qb {
			return qb > qa
		}
		ta := ingestedAt(records, winner.recordID)
		tb := ingestedAt(records, id)
		if !ta.Equal(tb) {
			return tb.After(ta)
		}
		return id < winner.recordID
	}

	for _, id := range cluster.RecordIDs {
		rec, ok := normalized[id]
		if !ok {
			continue
		}
		value, ok := rec.Value(field)
		if !ok {
			continue
		}
		if better(id) {
			winner = &candidate{recordID: id, value: value}
		}
	}
	return winner
}

// clusterFields is the sorted union of populated normalized fields across
// the cluster.
func clusterFields(cluster models.EntityCluster, normalized map[string]*models.NormalizedRecord) []string {
	seen := make(map[string]bool)
	for _, id := range cluster.RecordIDs {
		rec, ok := normalized[id]
		if !ok {
			continue
		}
		for field, value := range rec.Normalized {
			if value != "" {
				seen[field] = true
			}
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func ingestedAt(records map[string]*models.Record, id string) time.Time {
	if rec, ok := records[id]; ok {
		return rec.IngestedAt
	}
	return time.Time{}
}
