package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// ContextFingerprint hashes the sorted set of neighbor ids that framed an
// expansion request. Two requests made against the same neighborhood
// produce the same fingerprint regardless of neighbor order or
// duplicates in the input.
func ContextFingerprint(ids []int64) string {
	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	slices.Sort(uniq)

	var b strings.Builder
	for i, id := range uniq {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// Jaccard scores the overlap of two id sets as |A∩B| / |A∪B|.
// Two empty sets score 1; one empty set against a non-empty one scores 0.
func Jaccard(a, b []int64) float64 {
	setA := make(map[int64]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[int64]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	inter := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
