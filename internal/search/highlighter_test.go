package search

import (
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	if got := Highlight("short", "", 10, "", ""); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Highlight("long text here", "", 4, "", ""); got != "long..." {
		t.Errorf("got %q", got)
	}
	if got := Highlight("x", "", 0, "", ""); got != "x" {
		t.Error("maxLen 0 should return as-is")
	}
}

func TestHighlight_MarksTerms(t *testing.T) {
	got := Highlight("BRAF mutations in Melanoma and braf inhibitors", "braf melanoma of", 0, "[", "]")
	want := "[BRAF] mutations in [Melanoma] and [braf] inhibitors"
	if got != want {
		t.Errorf("Highlight() = %q, want %q", got, want)
	}
}

func TestHighlight_WindowsAroundFirstMatch(t *testing.T) {
	content := strings.Repeat("filler ", 40) + "the kinase domain" + strings.Repeat(" tail", 40)
	got := Highlight(content, "kinase", 40, "*", "*")
	if !strings.HasPrefix(got, "...") {
		t.Errorf("window should start mid-text, got %q", got)
	}
	if !strings.Contains(got, "*kinase*") {
		t.Errorf("window should contain the marked term, got %q", got)
	}
}
