package embedding

import "testing"

func TestEmbeddingCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("BRCA1"); ok || v != nil {
		t.Fatal("expected a miss on an empty cache")
	}
	c.Set("BRCA1", []float32{1, 0})
	c.Set("TP53", []float32{0, 1})
	// Touching BRCA1 makes TP53 the eviction candidate.
	if _, ok := c.Get("BRCA1"); !ok {
		t.Fatal("BRCA1 should be cached")
	}
	c.Set("KRAS", []float32{1, 1})

	if _, ok := c.Get("TP53"); ok {
		t.Error("TP53 should have been evicted")
	}
	for _, text := range []string{"BRCA1", "KRAS"} {
		if _, ok := c.Get(text); !ok {
			t.Errorf("%s should still be cached", text)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_CopiesVectors(t *testing.T) {
	c := NewEmbeddingCache(4)
	in := []float32{3, 4}
	c.Set("gene x", in)
	in[0] = 100

	out, _ := c.Get("gene x")
	if out[0] != 3 {
		t.Fatalf("cached vector changed with the caller's slice: %v", out)
	}
	out[1] = 100
	again, _ := c.Get("gene x")
	if again[1] != 4 {
		t.Errorf("cached vector changed through a returned slice: %v", again)
	}
}

func TestEmbeddingCache_SetReplaces(t *testing.T) {
	c := NewEmbeddingCache(1)
	c.Set("x", []float32{1})
	c.Set("x", []float32{2})
	if v, ok := c.Get("x"); !ok || v[0] != 2 || c.Len() != 1 {
		t.Errorf("Get(x) = %v, %v, len %d", v, ok, c.Len())
	}
}
