package keyword

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{"identical", "Nature", "Nature", 0},
		{"empty a", "", "Cell", 4},
		{"empty b", "Cell", "", 4},
		{"substitution", "BRCA1", "BRCA2", 1},
		{"insertion", "Lancet", "Lancets", 1},
		{"transposition", "Nature", "Natrue", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
		{"unicode", "naïve", "naive", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editDistance(tt.a, tt.b); got != tt.expected {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
