package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeL2 = %v", x)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestNormalizedCopies(t *testing.T) {
	x := []float32{0, 2}
	y := Normalized(x)
	if x[1] != 2 {
		t.Error("input modified")
	}
	if y[1] != 1 {
		t.Errorf("Normalized = %v", y)
	}
}
