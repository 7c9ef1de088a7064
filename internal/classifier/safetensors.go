package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

const maxSafetensorsHeader = 100 << 20

// Tensor is a dense F32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

func (t Tensor) size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ReadSafetensors decodes a safetensors file: an 8-byte little-endian header
// length, a JSON header and the raw tensor bytes. Only F32 tensors are
// accepted.
func ReadSafetensors(path string) (map[string]Tensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("weights file %s is truncated", path)
	}
	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if headerLen > maxSafetensorsHeader || 8+headerLen > uint64(len(raw)) {
		return nil, fmt.Errorf("weights header length %d out of range", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("decode weights header: %w", err)
	}
	body := raw[8+headerLen:]

	out := make(map[string]Tensor, len(header))
	for name, entry := range header {
		if name == "__metadata__" {
			continue
		}
		var info struct {
			DType       string   `json:"dtype"`
			Shape       []int    `json:"shape"`
			DataOffsets [2]int64 `json:"data_offsets"`
		}
		if err := json.Unmarshal(entry, &info); err != nil {
			return nil, fmt.Errorf("decode tensor %s: %w", name, err)
		}
		if info.DType != "F32" {
			return nil, fmt.Errorf("tensor %s has dtype %s, want F32", name, info.DType)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		t := Tensor{Shape: info.Shape}
		if start < 0 || end < start || end > int64(len(body)) || end-start != int64(4*t.size()) {
			return nil, fmt.Errorf("tensor %s offsets [%d,%d] do not match shape %v", name, start, end, info.Shape)
		}
		t.Data = make([]float32, t.size())
		for i := range t.Data {
			bits := binary.LittleEndian.Uint32(body[start+int64(4*i):])
			t.Data[i] = math.Float32frombits(bits)
		}
		out[name] = t
	}
	return out, nil
}
