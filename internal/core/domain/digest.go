package domain

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// DocumentDigest hashes the multiset of (source, chunk count) pairs of a
// case. Any upload or delete changes it.
func DocumentDigest(docs []CaseDocument) string {
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s\x00%d\n", d.Source, d.ChunkCount))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "")))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeFocus case-folds and trims a focus string.
func NormalizeFocus(focus string) string {
	return strings.ToLower(strings.TrimSpace(focus))
}

// FocusHash is a short SHA-1 prefix of the normalized focus.
func FocusHash(focus string) string {
	sum := sha1.Sum([]byte(NormalizeFocus(focus)))
	return hex.EncodeToString(sum[:])[:10]
}
