package merger

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// similarDistance is the largest edit distance reported as a likely typo.
	similarDistance = 2
	// similarMinLength keeps short names like "ID"/"No" out of the report.
	similarMinLength = 4
)

// SimilarPair is a pair of distinct header names within similarDistance edits.
type SimilarPair struct {
	Existing string
	Added    string
	Distance int
}

// header is the case-insensitive, first-seen-order union of source headers.
type header struct {
	columns []string
	index   map[string]string
	similar []SimilarPair
}

func newHeader() *header {
	return &header{index: make(map[string]string)}
}

// add returns the canonical name for col, appending it on first sight.
func (h *header) add(col string) string {
	key := strings.ToLower(col)
	if canonical, ok := h.index[key]; ok {
		return canonical
	}
	if utf8.RuneCountInString(key) >= similarMinLength {
		for _, existing := range h.columns {
			other := strings.ToLower(existing)
			if utf8.RuneCountInString(other) < similarMinLength {
				continue
			}
			if d := levenshtein.ComputeDistance(key, other); d <= similarDistance {
				h.similar = append(h.similar, SimilarPair{Existing: existing, Added: col, Distance: d})
			}
		}
	}
	h.index[key] = col
	h.columns = append(h.columns, col)
	return col
}
