package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := Truncate("αβγ", 3); got != "α..." {
		t.Errorf("got %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine(" a\n\nb\tc "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}
