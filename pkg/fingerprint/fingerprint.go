// Package fingerprint produces deterministic hashes of record field data,
// used for change detection on ingested records and for memoizing pairwise
// match verdicts between runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Generate creates a deterministic fingerprint for a field map: a SHA256
// hash over the key-sorted canonical form.
func Generate(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0x1f)
		b.WriteString(fields[k])
		b.WriteByte(0x1e)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Pair creates a memo key for an unordered record pair from the two record
// fingerprints. Order-insensitive: Pair(a,b) == Pair(b,a).
func Pair(fpA, fpB string) string {
	if fpB < fpA {
		fpA, fpB = fpB, fpA
	}
	hash := sha256.Sum256([]byte(fpA + ":" + fpB))
	return hex.EncodeToString(hash[:])
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
