package similarity

import (
	"math"
	"strings"
	"testing"
)

func TestScoreIdenticalStrings(t *testing.T) {
	inputs := []string{
		"10 Main St",
		"10 F2 Narayanasamy Kovil Street, Pettai, Tirunelveli, Tamil Nadu 627004",
		"a",
		"日本語 住所",
	}
	for _, s := range inputs {
		score, match := Score(s, s, 1.0)
		if score != 1.0 || !match {
			t.Fatalf("Score(%q, %q) = (%v, %v), want (1.0, true)", s, s, score, match)
		}
	}
}

func TestScoreEmptyInput(t *testing.T) {
	cases := [][2]string{
		{"", "10 Main St"},
		{"10 Main St", ""},
		{"   ", "10 Main St"},
		{"", ""},
	}
	for _, c := range cases {
		score, match := Score(c[0], c[1], 0.5)
		if score != 0 || match {
			t.Fatalf("Score(%q, %q) = (%v, %v), want (0, false)", c[0], c[1], score, match)
		}
	}
}

func TestScoreSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"10 Main St, Chennai, TN 600001", "10 Main Street Chennai Tamil Nadu"},
		{"42 King St, Toronto, ON", "42 King Street Toronto Ontario"},
		{"foo bar", "bar baz"},
		{"a b c", "x y z"},
	}
	for _, p := range pairs {
		ab, _ := Score(p[0], p[1], 0.5)
		ba, _ := Score(p[1], p[0], 0.5)
		if ab != ba {
			t.Fatalf("Score(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestScoreDisjointTokenSets(t *testing.T) {
	score, match := Score("alpha beta gamma", "delta epsilon", 0.1)
	if score != 0 || match {
		t.Fatalf("disjoint sets scored %v, want 0", score)
	}
}

func TestScoreIdenticalTokenSetsAfterNormalization(t *testing.T) {
	score, _ := Score("10, Main. St", "st main 10", 0.9)
	if score != 1.0 {
		t.Fatalf("identical token sets scored %v, want 1.0", score)
	}
}

func TestScoreJaccardFraction(t *testing.T) {
	// {a b c} vs {b c d}: intersection 2, union 4.
	score, _ := Score("a b c", "b c d", 0)
	if math.Abs(score-0.5) > 1e-9 {
		t.Fatalf("partial overlap scored %v, want 0.5", score)
	}
}

func TestScoreThresholdBoundary(t *testing.T) {
	score, match := Score("a b c", "b c d", 0.5)
	if !match {
		t.Fatalf("score %v should meet threshold 0.5", score)
	}
	if _, match := Score("a b c", "b c d", 0.51); match {
		t.Fatal("score 0.5 should not meet threshold 0.51")
	}
}

func TestNormalizeExpandsIndianStateCode(t *testing.T) {
	got := Normalize("10 Main St, Chennai, TN 600001")
	want := "10 main st, chennai, tamil nadu 600001"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeResolvesAmbiguousCodesByContext(t *testing.T) {
	// "SK" and "NL" exist in both schemes; an Ontario address carries no
	// Indian hint, so they resolve to the Canadian expansions.
	got := Normalize("Box 5, SK, near Ontario border, NL side")
	if !strings.Contains(got, "saskatchewan") || !strings.Contains(got, "newfoundland and labrador") {
		t.Fatalf("canadian context expansion wrong: %q", got)
	}

	got = Normalize("Main Road, SK 737101, India, NL")
	if !strings.Contains(got, "sikkim") || !strings.Contains(got, "nagaland") {
		t.Fatalf("indian context expansion wrong: %q", got)
	}
}

func TestExpansionIsWordBoundaryOnly(t *testing.T) {
	// "TNT" and "ONLY" contain region codes as substrings and must survive.
	got := Normalize("TNT depot ONLY")
	if got != "tnt depot only" {
		t.Fatalf("substring corrupted during expansion: %q", got)
	}
}

func TestClassifyRegion(t *testing.T) {
	cases := []struct {
		address string
		want    RegionScheme
	}{
		{"10 Main St, Chennai, TN 600001", SchemeIndia},
		{"Plot 4, Anna Nagar", SchemeIndia},
		{"Flat 2, India Gate Road", SchemeIndia},
		{"12 Cross St 627004", SchemeIndia},
		{"42 King St, Toronto, ON M5H 1A1", SchemeCanada},
		{"99 Water St, St. John's", SchemeCanada},
	}
	for _, c := range cases {
		if got := ClassifyRegion(c.address); got != c.want {
			t.Fatalf("ClassifyRegion(%q) = %v, want %v", c.address, got, c.want)
		}
	}
}

func TestScoreUnicodeDoesNotPanic(t *testing.T) {
	score, _ := Score("नई दिल्ली, DL", "New Delhi", 0.5)
	if score < 0 || score > 1 {
		t.Fatalf("score out of range: %v", score)
	}
}
