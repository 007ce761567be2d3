// Package index provides nearest-neighbor search over corpus chunk
// embeddings. The index is built once at startup from the loaded corpus and
// is read-only afterwards; brute-force cosine similarity is sufficient at
// the corpus sizes this assistant serves (hundreds to low thousands of
// chunks).
package index

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/upravdom/upravdom/internal/corpus"
)

// ErrEmpty reports an index with no usable vectors.
var ErrEmpty = errors.New("index: no vectors")

// Hit is a single search result: a chunk id with its cosine similarity.
type Hit struct {
	ID    string
	Score float32
}

// Index holds chunk ids and their embeddings, aligned by position.
type Index struct {
	ids     []string
	vectors [][]float32
	norms   []float32
	dim     int
}

// Build constructs an Index from every corpus chunk that carries an
// embedding. All embeddings must share one dimensionality.
func Build(store *corpus.Store) (*Index, error) {
	idx := &Index{}
	for _, c := range store.All() {
		if len(c.Embedding) == 0 {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(c.Embedding)
		} else if len(c.Embedding) != idx.dim {
			return nil, fmt.Errorf("index: chunk %s has dimension %d, expected %d", c.ID, len(c.Embedding), idx.dim)
		}
		idx.ids = append(idx.ids, c.ID)
		idx.vectors = append(idx.vectors, c.Embedding)
		idx.norms = append(idx.norms, norm(c.Embedding))
	}
	if len(idx.ids) == 0 {
		return nil, ErrEmpty
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// Dim returns the embedding dimensionality.
func (idx *Index) Dim() int {
	return idx.dim
}

// Search returns the topK most similar chunks to the query vector, ordered
// by descending cosine similarity. Ties are broken by insertion order so
// results are deterministic.
func (idx *Index) Search(vector []float32, topK int) ([]Hit, error) {
	if len(idx.ids) == 0 {
		return nil, ErrEmpty
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("index: query dimension %d, expected %d", len(vector), idx.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &hitHeap{}
	heap.Init(h)
	for i, v := range idx.vectors {
		if idx.norms[i] == 0 {
			continue
		}
		score := dot(vector, v) / (queryNorm * idx.norms[i])
		if h.Len() < topK {
			heap.Push(h, scored{pos: i, score: score})
		} else if less((*h)[0], scored{pos: i, score: score}) {
			(*h)[0] = scored{pos: i, score: score}
			heap.Fix(h, 0)
		}
	}

	// Drain the min-heap into descending order.
	out := make([]Hit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		s := heap.Pop(h).(scored)
		out[i] = Hit{ID: idx.ids[s.pos], Score: s.score}
	}
	return out, nil
}

type scored struct {
	pos   int
	score float32
}

// less orders by score, then by earlier position for determinism.
func less(a, b scored) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.pos > b.pos
}

// hitHeap is a min-heap keeping the current topK candidates.
type hitHeap []scored

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}
