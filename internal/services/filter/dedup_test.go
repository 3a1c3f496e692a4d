package filter

import "testing"

func TestNormalizeHeadline(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"US Payrolls, beat!", "us payrolls beat"},
		{"  Fed   holds rates -- again  ", "fed holds rates again"},
		{"CPI +3.2% y/y", "cpi 3 2 y y"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeHeadline(tt.in); got != tt.want {
			t.Errorf("NormalizeHeadline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentHashIgnoresPunctuation(t *testing.T) {
	a := ContentHash("US Payrolls, beat!")
	b := ContentHash("us payrolls beat")
	if a != b {
		t.Errorf("Expected equal hashes, got %s and %s", a, b)
	}

	c := ContentHash("US payrolls miss")
	if a == c {
		t.Error("Expected different headlines to hash differently")
	}
}

func TestTokenSimilarity(t *testing.T) {
	if sim := TokenSimilarity("fed holds rates", "fed holds rates"); sim != 1.0 {
		t.Errorf("Expected 1.0 for identical text, got %f", sim)
	}
	if sim := TokenSimilarity("fed holds rates", "apple ships phone"); sim != 0 {
		t.Errorf("Expected 0 for disjoint text, got %f", sim)
	}
	if sim := TokenSimilarity("", "fed holds rates"); sim != 0 {
		t.Errorf("Expected 0 for empty text, got %f", sim)
	}

	sim := TokenSimilarity("fed holds rates steady", "fed holds rates higher")
	if sim <= 0.5 || sim >= 1.0 {
		t.Errorf("Expected partial overlap in (0.5, 1.0), got %f", sim)
	}
}

func TestIsNearDuplicate(t *testing.T) {
	recent := []string{
		"Fed holds interest rates steady at September meeting",
		"Apple announces record quarterly iPhone revenue",
	}

	if !IsNearDuplicate("Fed holds interest rates steady at September meeting", recent, 0.90) {
		t.Error("Expected identical summary flagged as duplicate")
	}
	if IsNearDuplicate("Treasury yields fall after auction", recent, 0.90) {
		t.Error("Expected unrelated summary to pass")
	}
	if IsNearDuplicate("Fed holds interest rates steady", nil, 0.90) {
		t.Error("Expected no duplicates against empty history")
	}
}
