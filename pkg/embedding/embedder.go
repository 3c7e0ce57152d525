// Package embedding turns text into fixed-size vectors for similarity
// search. All implementations return L2-normalized vectors so the vector
// store can score with a plain dot product.
package embedding

import (
	"context"
	"math"
)

type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

func normalize(vector []float64) []float64 {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	if sum == 0 {
		return vector
	}
	norm := 1.0 / math.Sqrt(sum)
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
