// Package blocking partitions records into candidate groups by cheap derived
// keys, bounding pairwise comparison. Keys are deliberately generous: each
// record contributes every key it can form, and candidate pairs are the
// union over all blocks. A pair that shares no key is never compared, so
// missed keys are permanent resolution failures.
package blocking

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/normalize"
	"github.com/Ramsey-B/banksia/pkg/similarity"
)

// KeyFunc derives zero or more blocking keys from a normalized record.
type KeyFunc func(rec *models.NormalizedRecord) []string

// Blocker groups records into blocks keyed by its key functions.
type Blocker struct {
	keyFuncs []KeyFunc
}

// New creates a blocker with the default patient key set:
// Medicare digits, date of birth, family-name Soundex + birth year,
// and MRN tail + postcode.
func New() *Blocker {
	return &Blocker{
		keyFuncs: []KeyFunc{
			medicareKey,
			dobKey,
			nameSoundexKey,
			mrnPostcodeKey,
		},
	}
}

// NewWithKeys creates a blocker with a custom key set.
func NewWithKeys(keyFuncs ...KeyFunc) *Blocker {
	return &Blocker{keyFuncs: keyFuncs}
}

// Block groups records by blocking key. Every record appears under each key
// it can form; records that form no key end up in no block and surface later
// as singleton clusters.
func (b *Blocker) Block(records []*models.NormalizedRecord) map[string][]string {
	blocks := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	for _, rec := range records {
		for _, fn := range b.keyFuncs {
			for _, key := range fn(rec) {
				if key == "" {
					continue
				}
				if seen[key] == nil {
					seen[key] = make(map[string]bool)
				}
				if seen[key][rec.RecordID] {
					continue
				}
				seen[key][rec.RecordID] = true
				blocks[key] = append(blocks[key], rec.RecordID)
			}
		}
	}

	for key := range blocks {
		sort.Strings(blocks[key])
	}
	return blocks
}

// CandidatePairs expands blocks into the deduplicated union of all unordered
// pairs within each block, sorted ascending by (id1, id2) for determinism.
func CandidatePairs(blocks map[string][]string) []models.CandidatePair {
	seen := make(map[models.CandidatePair]bool)

	for _, ids := range blocks {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pair := models.NewCandidatePair(ids[i], ids[j])
				seen[pair] = true
			}
		}
	}

	pairs := make([]models.CandidatePair, 0, len(seen))
	for pair := range seen {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ID1 != pairs[j].ID1 {
			return pairs[i].ID1 < pairs[j].ID1
		}
		return pairs[i].ID2 < pairs[j].ID2
	})
	return pairs
}

func medicareKey(rec *models.NormalizedRecord) []string {
	if v, ok := rec.Value(normalize.FieldMedicare); ok {
		return []string{"mcare:" + v}
	}
	return nil
}

func dobKey(rec *models.NormalizedRecord) []string {
	if v, ok := rec.Value(normalize.FieldDOB); ok {
		return []string{"dob:" + v}
	}
	return nil
}

// nameSoundexKey blocks on the phonetic encoding of the family name plus the
// birth year, so spelling variants of the same person still collide.
func nameSoundexKey(rec *models.NormalizedRecord) []string {
	name, ok := rec.Value(normalize.FieldName)
	if !ok {
		return nil
	}
	dob, ok := rec.Value(normalize.FieldDOB)
	if !ok || len(dob) < 4 {
		return nil
	}

	parts := strings.Fields(name)
	if len(parts) == 0 {
		return nil
	}
	family := parts[len(parts)-1]

	return []string{"nm:" + similarity.Soundex(family) + ":" + dob[:4]}
}

func mrnPostcodeKey(rec *models.NormalizedRecord) []string {
	mrn, ok := rec.Value(normalize.FieldMRN)
	if !ok || len(mrn) < 4 {
		return nil
	}
	postcode, ok := rec.Value(normalize.FieldPostcode)
	if !ok {
		return nil
	}
	return []string{"mrn:" + mrn[len(mrn)-4:] + ":" + postcode}
}
