package crawler

import "math"

// dedupThreshold marks two chunks as near-duplicates when the cosine
// similarity of their embeddings exceeds it.
const dedupThreshold = 0.95

// Deduplicate removes near-duplicate chunks, keeping the first occurrence.
// chunks and vectors must be parallel slices.
func Deduplicate(chunks []string, vectors [][]float32) ([]string, [][]float32) {
	if len(vectors) == 0 {
		return chunks, vectors
	}

	normed := make([][]float32, len(vectors))
	for i, v := range vectors {
		normed[i] = normalize(v)
	}

	var keep []int
	for i := range normed {
		dup := false
		for _, j := range keep {
			if dot(normed[i], normed[j]) > dedupThreshold {
				dup = true
				break
			}
		}
		if !dup {
			keep = append(keep, i)
		}
	}

	outChunks := make([]string, len(keep))
	outVectors := make([][]float32, len(keep))
	for n, i := range keep {
		outChunks[n] = chunks[i]
		outVectors[n] = vectors[i]
	}
	return outChunks, outVectors
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
