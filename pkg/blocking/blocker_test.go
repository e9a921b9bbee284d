package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
)

func normRec(id string, fields map[string]string) *models.NormalizedRecord {
	return &models.NormalizedRecord{RecordID: id, Normalized: fields}
}

func TestBlock_TrueDuplicatesShareABlock(t *testing.T) {
	b := New()

	t.Run("same medicare number", func(t *testing.T) {
		records := []*models.NormalizedRecord{
			normRec("1", map[string]string{normalize.FieldMedicare: "2428912345678"}),
			normRec("2", map[string]string{normalize.FieldMedicare: "2428912345678"}),
		}
		blocks := b.Block(records)
		assert.Equal(t, []string{"1", "2"}, blocks["mcare:2428912345678"])
	})

	t.Run("same dob different medicare", func(t *testing.T) {
		records := []*models.NormalizedRecord{
			normRec("1", map[string]string{normalize.FieldDOB: "1985-03-15", normalize.FieldMedicare: "111"}),
			normRec("2", map[string]string{normalize.FieldDOB: "1985-03-15", normalize.FieldMedicare: "222"}),
		}
		blocks := b.Block(records)
		assert.Equal(t, []string{"1", "2"}, blocks["dob:1985-03-15"])
	})

	t.Run("phonetic family name plus birth year", func(t *testing.T) {
		records := []*models.NormalizedRecord{
			normRec("1", map[string]string{normalize.FieldName: "john smith", normalize.FieldDOB: "1985-03-15"}),
			normRec("2", map[string]string{normalize.FieldName: "jon smyth", normalize.FieldDOB: "1985-03-15"}),
		}
		blocks := b.Block(records)

		pairs := CandidatePairs(blocks)
		require.Len(t, pairs, 1)
		assert.Equal(t, models.CandidatePair{ID1: "1", ID2: "2"}, pairs[0])
	})
}

func TestCandidatePairs_DeduplicatesAcrossBlocks(t *testing.T) {
	b := New()

	// These two records share both the medicare block and the dob block;
	// the pair must still be produced exactly once.
	records := []*models.NormalizedRecord{
		normRec("1", map[string]string{
			normalize.FieldMedicare: "2428912345678",
			normalize.FieldDOB:      "1985-03-15",
		}),
		normRec("2", map[string]string{
			normalize.FieldMedicare: "2428912345678",
			normalize.FieldDOB:      "1985-03-15",
		}),
	}

	pairs := CandidatePairs(b.Block(records))
	require.Len(t, pairs, 1)
	assert.Equal(t, "1", pairs[0].ID1)
	assert.Equal(t, "2", pairs[0].ID2)
}

func TestCandidatePairs_CanonicalOrderAndSort(t *testing.T) {
	blocks := map[string][]string{
		"k1": {"b", "a", "c"},
	}

	pairs := CandidatePairs(blocks)
	require.Len(t, pairs, 3)
	assert.Equal(t, models.CandidatePair{ID1: "a", ID2: "b"}, pairs[0])
	assert.Equal(t, models.CandidatePair{ID1: "a", ID2: "c"}, pairs[1])
	assert.Equal(t, models.CandidatePair{ID1: "b", ID2: "c"}, pairs[2])
}

func TestBlock_RecordWithNoKeysFormsNoBlock(t *testing.T) {
	b := New()

	records := []*models.NormalizedRecord{
		normRec("1", map[string]string{normalize.FieldEmail: "a@b.com"}),
	}
	blocks := b.Block(records)
	assert.Empty(t, blocks)
}

func TestBlock_BoundsComparisons(t *testing.T) {
	b := New()

	// Two disjoint dob groups: no cross-group pairs.
	records := []*models.NormalizedRecord{
		normRec("1", map[string]string{normalize.FieldDOB: "1985-03-15"}),
		normRec("2", map[string]string{normalize.FieldDOB: "1985-03-15"}),
		normRec("3", map[string]string{normalize.FieldDOB: "1990-12-01"}),
		normRec("4", map[string]string{normalize.FieldDOB: "1990-12-01"}),
	}

	pairs := CandidatePairs(b.Block(records))
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.NotEqual(t, models.NewCandidatePair("1", "3"), p)
		assert.NotEqual(t, models.NewCandidatePair("2", "4"), p)
	}
}
