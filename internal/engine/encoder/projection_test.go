package encoder

import (
	"path/filepath"
	"testing"

	"github.com/crimson-sun/factcheck/internal/safetensors"
)

func writeProjection(t *testing.T, shape []int, weights []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.safetensors")
	err := safetensors.Write(path, &safetensors.File{Tensors: map[string]safetensors.Tensor{
		"linear.weight": safetensors.FromFloat32s(shape, weights),
	}})
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	return path
}

func TestLoadProjection(t *testing.T) {
	// 2x3: row 0 sums the input, row 1 picks the last element.
	path := writeProjection(t, []int{2, 3}, []float32{1, 1, 1, 0, 0, 1})

	proj, err := loadProjection(path)
	if err != nil {
		t.Fatalf("loadProjection error: %v", err)
	}
	if proj.inDim != 3 || proj.outDim != 2 {
		t.Fatalf("dims = %dx%d, want 2x3", proj.outDim, proj.inDim)
	}

	out := proj.apply([]float32{1, 2, 3})
	if !closeEnough(out[0], 6) || !closeEnough(out[1], 3) {
		t.Errorf("apply = %v, want [6 3]", out)
	}
}

func TestLoadProjectionErrors(t *testing.T) {
	dir := t.TempDir()

	wrongName := filepath.Join(dir, "wrong.safetensors")
	if err := safetensors.Write(wrongName, &safetensors.File{Tensors: map[string]safetensors.Tensor{
		"dense.weight": safetensors.FromFloat32s([]int{1, 1}, []float32{1}),
	}}); err != nil {
		t.Fatal(err)
	}

	oneDim := filepath.Join(dir, "flat.safetensors")
	if err := safetensors.Write(oneDim, &safetensors.File{Tensors: map[string]safetensors.Tensor{
		"linear.weight": safetensors.FromFloat32s([]int{2}, []float32{1, 2}),
	}}); err != nil {
		t.Fatal(err)
	}

	wrongDtype := filepath.Join(dir, "f64.safetensors")
	if err := safetensors.Write(wrongDtype, &safetensors.File{Tensors: map[string]safetensors.Tensor{
		"linear.weight": safetensors.FromFloat64s([]int{1, 1}, []float64{1}),
	}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.safetensors")},
		{"missing tensor", wrongName},
		{"not 2D", oneDim},
		{"wrong dtype", wrongDtype},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadProjection(tc.path); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
