package fileid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDocumentID(t *testing.T) {
	id := DocumentID("/inbox/PMC123.json")
	if id != DocumentID("/inbox/PMC123.json") {
		t.Error("same path should give the same ID")
	}
	if !IsFileID(id) {
		t.Errorf("ID should carry prefix %q: %q", Prefix, id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, Prefix)); err != nil {
		t.Errorf("ID should wrap a UUID: %v", err)
	}
	if id == DocumentID("/inbox/PMC124.json") {
		t.Error("different paths should give different IDs")
	}
}

func TestDocumentID_cleansPath(t *testing.T) {
	for _, p := range []string{"/inbox/a/", "/inbox/./a", "/inbox/b/../a"} {
		if DocumentID(p) != DocumentID("/inbox/a") {
			t.Errorf("DocumentID(%q) should match the cleaned path", p)
		}
	}
}

func TestIsFileID(t *testing.T) {
	if IsFileID("PMC123") {
		t.Error("article IDs are not file IDs")
	}
}
