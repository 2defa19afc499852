// Package safetensors reads and writes the safetensors tensor container:
// an 8-byte little-endian header length, a JSON header describing each
// tensor, then the raw little-endian tensor bytes.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Dtype names a tensor element type.
type Dtype string

const (
	F32 Dtype = "F32"
	F64 Dtype = "F64"
)

func (d Dtype) size() (int, error) {
	switch d {
	case F32:
		return 4, nil
	case F64:
		return 8, nil
	default:
		return 0, fmt.Errorf("safetensors: unsupported dtype %s", d)
	}
}

const metadataKey = "__metadata__"

// Tensor is a dense tensor with little-endian element bytes.
type Tensor struct {
	Dtype Dtype
	Shape []int
	Data  []byte
}

// File is the decoded content of a safetensors file.
type File struct {
	Tensors  map[string]Tensor
	Metadata map[string]string
}

type tensorMeta struct {
	Dtype       Dtype  `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// FromFloat64s builds an F64 tensor.
func FromFloat64s(shape []int, values []float64) Tensor {
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return Tensor{Dtype: F64, Shape: shape, Data: data}
}

// FromFloat32s builds an F32 tensor.
func FromFloat32s(shape []int, values []float32) Tensor {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return Tensor{Dtype: F32, Shape: shape, Data: data}
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Float32s decodes an F32 tensor.
func (t Tensor) Float32s() ([]float32, error) {
	if t.Dtype != F32 {
		return nil, fmt.Errorf("safetensors: expected dtype F32, got %s", t.Dtype)
	}
	out := make([]float32, len(t.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
	}
	return out, nil
}

// Float64s decodes an F64 tensor, widening F32 data if necessary.
func (t Tensor) Float64s() ([]float64, error) {
	switch t.Dtype {
	case F64:
		out := make([]float64, len(t.Data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(t.Data[i*8:]))
		}
		return out, nil
	case F32:
		f32, _ := t.Float32s()
		out := make([]float64, len(f32))
		for i, v := range f32 {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("safetensors: cannot decode dtype %s as float", t.Dtype)
	}
}

// Read loads and decodes a safetensors file.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: %w", err)
	}
	return Decode(data)
}

// Decode parses safetensors bytes.
func Decode(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data))-8 < headerLen {
		return nil, fmt.Errorf("safetensors: header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("safetensors: failed to parse header: %w", err)
	}

	f := &File{Tensors: make(map[string]Tensor, len(header))}
	body := data[8+headerLen:]

	for name, raw := range header {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &f.Metadata); err != nil {
				return nil, fmt.Errorf("safetensors: failed to parse metadata: %w", err)
			}
			continue
		}

		var meta tensorMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: failed to parse metadata: %w", name, err)
		}
		elem, err := meta.Dtype.size()
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		start, end := meta.DataOffsets[0], meta.DataOffsets[1]
		if start < 0 || end < start || end > len(body) {
			return nil, fmt.Errorf("safetensors: tensor %q: data range [%d:%d] exceeds body size %d",
				name, start, end, len(body))
		}
		t := Tensor{Dtype: meta.Dtype, Shape: meta.Shape, Data: body[start:end]}
		if t.Len()*elem != end-start {
			return nil, fmt.Errorf("safetensors: tensor %q: data size %d doesn't match shape %v",
				name, end-start, meta.Shape)
		}
		f.Tensors[name] = t
	}
	return f, nil
}

// Encode serialises f. Tensors are laid out in name order so output is
// deterministic; the header is space-padded to an 8-byte boundary.
func Encode(f *File) ([]byte, error) {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		if name == metadataKey {
			return nil, fmt.Errorf("safetensors: reserved tensor name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(f.Metadata) > 0 {
		header[metadataKey] = f.Metadata
	}
	offset := 0
	for _, name := range names {
		t := f.Tensors[name]
		elem, err := t.Dtype.size()
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}
		if t.Len()*elem != len(t.Data) {
			return nil, fmt.Errorf("safetensors: tensor %q: data size %d doesn't match shape %v",
				name, len(t.Data), t.Shape)
		}
		header[name] = tensorMeta{
			Dtype:       t.Dtype,
			Shape:       t.Shape,
			DataOffsets: [2]int{offset, offset + len(t.Data)},
		}
		offset += len(t.Data)
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: failed to encode header: %w", err)
	}
	if pad := len(hdr) % 8; pad != 0 {
		hdr = append(hdr, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	out := make([]byte, 8, 8+len(hdr)+offset)
	binary.LittleEndian.PutUint64(out, uint64(len(hdr)))
	out = append(out, hdr...)
	for _, name := range names {
		out = append(out, f.Tensors[name].Data...)
	}
	return out, nil
}

// Write encodes f to path. The file is written to a temporary sibling and
// renamed into place so readers never observe a partial file.
func Write(path string, f *File) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".safetensors-*")
	if err != nil {
		return fmt.Errorf("safetensors: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("safetensors: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("safetensors: rename %s: %w", path, err)
	}
	return nil
}
