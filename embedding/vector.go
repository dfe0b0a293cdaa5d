package embedding

import (
	"github.com/go-crypt/x/blake2b"
)

// fallbackDigestSize is the BLAKE2b output length used for fallback vectors.
const fallbackDigestSize = 32

// Fallback derives a deterministic vector from a BLAKE2b digest of text.
// Each digest byte b becomes b/255*2-1, so components lie in [-1, 1]; the
// rest of the vector is zero. Identical text always yields an identical vector.
func Fallback(text string, dim int) []float32 {
	h, _ := blake2b.New(fallbackDigestSize, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)

	vec := make([]float32, len(sum))
	for i, b := range sum {
		vec[i] = float32(b)/255*2 - 1
	}
	return Normalize(vec, dim)
}

// Normalize pads vec with zeros or truncates it to exactly dim components.
// The input slice is never modified.
func Normalize(vec []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
