package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// HashEmbedder derives each component from a SHA-256 digest of the text and
// the component index. It is deterministic across processes and needs no
// network, but similar texts do not get similar vectors.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultConfig().Dimension
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed sets component i to (uint64(sha256(text + "_" + i)[:8]) mod 1000) / 1000.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	v := make([]float32, h.dimension)
	buf := make([]byte, 0, len(text)+8)
	for i := range v {
		buf = append(buf[:0], text...)
		buf = append(buf, '_')
		buf = strconv.AppendInt(buf, int64(i), 10)
		sum := sha256.Sum256(buf)
		v[i] = float32(binary.BigEndian.Uint64(sum[:8])%1000) / 1000
	}
	return v, nil
}
