package scoring_test

import (
	"reflect"
	"testing"

	"golang.org/x/text/language"

	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
)

func items(pairs ...string) []scoring.RankItem {
	out := make([]scoring.RankItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, scoring.RankItem{Label: pairs[i], Status: taxonomy.Status(pairs[i+1])})
	}
	return out
}

func TestRankBySeverityThreshold(t *testing.T) {
	in := items(
		"a", "insufficient",
		"b", "positive",
		"c", "attention",
		"d", "moderate",
		"e", "attention",
	)
	got := scoring.RankBySeverity(in, taxonomy.ABA())
	// attention (c, e in input order), moderate, positive, insufficient last
	want := []int{2, 4, 3, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankBySeverity = %v, want %v", got, want)
	}
}

func TestRankBySeverityPredominant(t *testing.T) {
	in := items(
		"a", "performed",
		"b", "not_performed",
		"c", "with_help",
	)
	got := scoring.RankBySeverity(in, taxonomy.Occupational())
	if want := []int{1, 2, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("RankBySeverity = %v, want %v", got, want)
	}
}

func TestRankBySeverityIdempotent(t *testing.T) {
	tax := taxonomy.ABA()
	in := items(
		"a", "positive",
		"b", "insufficient",
		"c", "attention",
		"d", "moderate",
		"e", "positive",
		"f", "attention",
	)
	first := scoring.RankBySeverity(in, tax)

	sorted := make([]scoring.RankItem, len(first))
	for i, idx := range first {
		sorted[i] = in[idx]
	}
	for i, idx := range scoring.RankBySeverity(sorted, tax) {
		if idx != i {
			t.Errorf("already-sorted input moved: position %d got index %d", i, idx)
		}
	}
}

func TestRankAlphabetically(t *testing.T) {
	in := items(
		"banana", "positive",
		"Ábaco", "positive",
		"abelha", "attention",
		"Casa", "moderate",
		"água", "positive",
	)
	got := scoring.RankAlphabetically(in, language.BrazilianPortuguese)

	labels := make([]string, len(got))
	for i, idx := range got {
		labels[i] = in[idx].Label
	}
	want := []string{"Ábaco", "abelha", "água", "banana", "Casa"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("RankAlphabetically = %v, want %v", labels, want)
	}
}

func TestRankAlphabeticallyStableOnTies(t *testing.T) {
	in := items(
		"Pular", "positive",
		"correr", "positive",
		"pular", "attention",
	)
	got := scoring.RankAlphabetically(in, language.BrazilianPortuguese)
	if want := []int{1, 0, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("RankAlphabetically = %v, want %v", got, want)
	}
}

func TestRankDoesNotMutate(t *testing.T) {
	in := items("b", "positive", "a", "attention")
	_ = scoring.RankBySeverity(in, taxonomy.ABA())
	_ = scoring.RankAlphabetically(in, language.English)
	if in[0].Label != "b" || in[1].Label != "a" {
		t.Errorf("input reordered: %v", in)
	}
}

func TestRankModes(t *testing.T) {
	in := items("b", "positive", "a", "attention")
	tax := taxonomy.ABA()

	for _, mode := range []scoring.SortMode{scoring.SortSeverity, scoring.SortAlphabetical} {
		got, err := scoring.Rank(in, mode, tax, language.English)
		if err != nil {
			t.Fatalf("Rank(%s): %v", mode, err)
		}
		if want := []int{1, 0}; !reflect.DeepEqual(got, want) {
			t.Errorf("Rank(%s) = %v, want %v", mode, got, want)
		}
	}

	if _, err := scoring.Rank(in, "random", tax, language.English); err == nil {
		t.Error("expected error for unknown sort mode")
	}
}

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		in      string
		want    scoring.SortMode
		wantErr bool
	}{
		{"", scoring.SortSeverity, false},
		{"severity", scoring.SortSeverity, false},
		{"Alphabetical", scoring.SortAlphabetical, false},
		{"name", scoring.SortAlphabetical, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		got, err := scoring.ParseSortMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSortMode(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSortMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSortMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRankEmpty(t *testing.T) {
	if got := scoring.RankBySeverity(nil, taxonomy.ABA()); len(got) != 0 {
		t.Errorf("RankBySeverity(nil) = %v", got)
	}
	if got := scoring.RankAlphabetically(nil, language.English); len(got) != 0 {
		t.Errorf("RankAlphabetically(nil) = %v", got)
	}
}
