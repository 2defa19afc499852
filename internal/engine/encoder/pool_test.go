package encoder

import (
	"math"
	"testing"
)

func TestMeanPool(t *testing.T) {
	// 1 sample, seqLen=3, dim=2. Mask [1, 1, 0]: only the first two tokens
	// count, so the result is [(1+3)/2, (2+4)/2].
	hidden := []float32{1, 2, 3, 4, 5, 6}
	mask := []int64{1, 1, 0}

	out := meanPool(hidden, mask, 1, 3, 2)

	if len(out) != 2 {
		t.Fatalf("expected 2 values, got %d", len(out))
	}
	if !closeEnough(out[0], 2.0) || !closeEnough(out[1], 3.0) {
		t.Errorf("expected [2, 3], got %v", out)
	}
}

func TestMeanPoolBatch(t *testing.T) {
	hidden := []float32{10, 20, 30, 40, 5, 15, 0, 0}
	mask := []int64{1, 1, 1, 0}

	out := meanPool(hidden, mask, 2, 2, 2)

	if len(out) != 4 {
		t.Fatalf("expected 4 values, got %d", len(out))
	}
	if !closeEnough(out[0], 20.0) || !closeEnough(out[1], 30.0) {
		t.Errorf("sample 0: expected [20, 30], got [%f, %f]", out[0], out[1])
	}
	if !closeEnough(out[2], 5.0) || !closeEnough(out[3], 15.0) {
		t.Errorf("sample 1: expected [5, 15], got [%f, %f]", out[2], out[3])
	}
}

func TestMeanPoolAllPadding(t *testing.T) {
	out := meanPool([]float32{1, 2, 3, 4}, []int64{0, 0}, 1, 2, 2)
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %f, want 0 (all-padding case)", i, v)
		}
	}
}

func TestNormalize(t *testing.T) {
	out := normalize([]float32{3, 4})
	if !closeEnough(out[0], 0.6) || !closeEnough(out[1], 0.8) {
		t.Errorf("expected [0.6, 0.8], got %v", out)
	}

	zero := normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should stay zero, got %v", zero)
	}
}

func closeEnough(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}
