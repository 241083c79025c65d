package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureFootprint(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "catalog.db")
	writeBytes(t, db, 100)
	writeBytes(t, db+"-wal", 20)
	vectors := filepath.Join(dir, "vectors")
	writeBytes(t, filepath.Join(vectors, "chunks.db"), 40)
	writeBytes(t, filepath.Join(vectors, "nested", "part"), 2)

	fp, err := MeasureFootprint(map[string]string{
		"catalog":  db,
		"vectors":  vectors,
		"metadata": filepath.Join(dir, "missing.bleve"),
		"unset":    "",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"catalog": 120, "vectors": 42, "metadata": 0, "unset": 0}
	for name, n := range want {
		if fp.Stores[name] != n {
			t.Errorf("%s = %d bytes, want %d", name, fp.Stores[name], n)
		}
	}
	if fp.Total != 162 {
		t.Errorf("total = %d, want 162", fp.Total)
	}
}
