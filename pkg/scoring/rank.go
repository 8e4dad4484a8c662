package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// RankItem is one entry to be ordered by the ranker.
type RankItem struct {
	Label  string
	Status taxonomy.Status
	Counts Counts
}

// ParseSortMode parses a sort mode name. The empty string selects severity.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortSeverity:
		return SortSeverity, nil
	case SortAlphabetical, "alpha", "name":
		return SortAlphabetical, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q (want severity or alphabetical)", s)
	}
}

// RankBySeverity returns item indices ordered worst status first. Statuses the
// taxonomy leaves unranked come after every ranked one. Equal severities keep
// their input order.
func RankBySeverity(items []RankItem, tax *taxonomy.Taxonomy) []int {
	keys := make([]int, len(items))
	for i, it := range items {
		d := taxonomy.Describe(it.Status, tax)
		if d.Ranked {
			keys[i] = d.Severity
		} else {
			keys[i] = math.MaxInt
		}
	}

	idx := identity(len(items))
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] < keys[idx[b]]
	})
	return idx
}

// RankAlphabetically returns item indices ordered by label using the collation
// rules of locale, ignoring case. Equal labels keep their input order.
func RankAlphabetically(items []RankItem, locale language.Tag) []int {
	// Collators are not safe for concurrent use; build one per call.
	col := collate.New(locale, collate.IgnoreCase)

	idx := identity(len(items))
	sort.SliceStable(idx, func(a, b int) bool {
		return col.CompareString(items[idx[a]].Label, items[idx[b]].Label) < 0
	})
	return idx
}

// Rank orders items under the given mode.
func Rank(items []RankItem, mode SortMode, tax *taxonomy.Taxonomy, locale language.Tag) ([]int, error) {
	switch mode {
	case SortSeverity, "":
		return RankBySeverity(items, tax), nil
	case SortAlphabetical:
		return RankAlphabetically(items, locale), nil
	default:
		return nil, fmt.Errorf("unknown sort mode %q", mode)
	}
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
