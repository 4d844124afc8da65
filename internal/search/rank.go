package search

import (
	"math"
	"sort"

	"github.com/seanblong/codelore/pkg/models"
)

// DefaultTopK is the number of files used as answer context.
const DefaultTopK = 10

// Scored is a candidate file with its similarity to the query.
type Scored struct {
	models.SourceCodeEmbedding
	Similarity float64
}

// Cosine returns the cosine similarity of a and b. It is 0 when either
// vector is empty or zero, or when their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores candidates against query and returns the best k, highest
// similarity first. Equal scores keep candidate order. When minScore > 0,
// candidates scoring below it are dropped.
func Rank(query []float32, candidates []models.SourceCodeEmbedding, k int, minScore float64) []Scored {
	if k <= 0 {
		k = DefaultTopK
	}
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		sim := Cosine(query, c.Embedding)
		if minScore > 0 && sim < minScore {
			continue
		}
		scored = append(scored, Scored{SourceCodeEmbedding: c, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
