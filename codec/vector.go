package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vecboard/model"
)

// AppendVector appends the binary form of v to dst:
// [dim uint32][dim × float32], little-endian.
func AppendVector(dst []byte, v model.Vector) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v)))
	for _, f := range v {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// DecodeVector parses a vector written by AppendVector and returns the number
// of bytes consumed.
func DecodeVector(data []byte) (model.Vector, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("%w: vector header", ErrCorrupt)
	}
	dim := int(binary.LittleEndian.Uint32(data))
	end := 4 + 4*dim
	if dim < 0 || len(data) < end {
		return nil, 0, fmt.Errorf("%w: vector of dimension %d truncated", ErrCorrupt, dim)
	}
	v := make(model.Vector, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+4*i:]))
	}
	return v, end, nil
}

// AppendPosition appends the 16-byte binary form of p to dst.
func AppendPosition(dst []byte, p model.Position) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(p.X))
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(p.Y))
}

// DecodePosition parses a position written by AppendPosition.
func DecodePosition(data []byte) (model.Position, error) {
	if len(data) != 16 {
		return model.Position{}, fmt.Errorf("%w: position must be 16 bytes, got %d", ErrCorrupt, len(data))
	}
	return model.Position{
		X: math.Float64frombits(binary.LittleEndian.Uint64(data)),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(data[8:])),
	}, nil
}

// VectorCodec encodes single vectors as compressed blocks.
type VectorCodec struct {
	Compression Compression
}

// Encode returns the compressed binary form of v.
func (c VectorCodec) Encode(v model.Vector) ([]byte, error) {
	return Compress(AppendVector(make([]byte, 0, 4+4*len(v)), v), c.Compression)
}

// Decode parses a block produced by Encode with any compression.
func (c VectorCodec) Decode(data []byte) (model.Vector, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	v, n, err := DecodeVector(raw)
	if err != nil {
		return nil, err
	}
	if n != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(raw)-n)
	}
	return v, nil
}
