package enums

import "testing"

func TestConfidenceLevelForBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0, ConfidenceLevelLow},
		{0.39, ConfidenceLevelLow},
		{0.3999999, ConfidenceLevelLow},
		{0.4, ConfidenceLevelMedium},
		{0.5, ConfidenceLevelMedium},
		{0.6999999, ConfidenceLevelMedium},
		{0.7, ConfidenceLevelHigh},
		{1, ConfidenceLevelHigh},
	}
	for _, tc := range cases {
		if got := ConfidenceLevelFor(tc.score); got != tc.want {
			t.Fatalf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestParseSubscriptionTier(t *testing.T) {
	tier, err := ParseSubscriptionTier("pro")
	if err != nil || tier != SubscriptionTierPro {
		t.Fatalf("expected pro, got %q err=%v", tier, err)
	}
	if _, err := ParseSubscriptionTier("platinum"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
	if SubscriptionTier("").IsValid() {
		t.Fatal("empty tier should be invalid")
	}
}

func TestParseSaleSource(t *testing.T) {
	if _, err := ParseSaleSource("square"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseSaleSource("stripe"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
