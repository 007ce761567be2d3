package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/upravdom/upravdom/internal/corpus"
)

func mustStore(t *testing.T, chunks []corpus.Chunk) *corpus.Store {
	t.Helper()
	store, err := corpus.New(chunks)
	if err != nil {
		t.Fatalf("corpus.New: %v", err)
	}
	return store
}

func TestBuild_SkipsChunksWithoutEmbeddings(t *testing.T) {
	store := mustStore(t, []corpus.Chunk{
		{ID: "a", Content: "x", Embedding: []float32{1, 0}},
		{ID: "b", Content: "y"},
		{ID: "c", Content: "z", Embedding: []float32{0, 1}},
	})

	idx, err := Build(store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len = %d, want 2", idx.Len())
	}
	if idx.Dim() != 2 {
		t.Fatalf("Dim = %d, want 2", idx.Dim())
	}
}

func TestBuild_RejectsMixedDimensions(t *testing.T) {
	store := mustStore(t, []corpus.Chunk{
		{ID: "a", Content: "x", Embedding: []float32{1, 0}},
		{ID: "b", Content: "y", Embedding: []float32{1, 0, 0}},
	})
	if _, err := Build(store); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBuild_EmptyIndex(t *testing.T) {
	store := mustStore(t, []corpus.Chunk{{ID: "a", Content: "x"}})
	if _, err := Build(store); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestSearch_OrdersByCosineSimilarity(t *testing.T) {
	store := mustStore(t, []corpus.Chunk{
		{ID: "east", Content: "x", Embedding: []float32{1, 0}},
		{ID: "north", Content: "y", Embedding: []float32{0, 1}},
		{ID: "northeast", Content: "z", Embedding: []float32{1, 1}},
	})
	idx, err := Build(store)
	if err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search([]float32{1, 0.1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].ID != "east" || hits[1].ID != "northeast" || hits[2].ID != "north" {
		t.Fatalf("order = %s %s %s, want east northeast north", hits[0].ID, hits[1].ID, hits[2].ID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not descending: %v", hits)
		}
	}
}

func TestSearch_TopKTruncates(t *testing.T) {
	var chunks []corpus.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, corpus.Chunk{
			ID:        fmt.Sprintf("c%d", i),
			Content:   "x",
			Embedding: []float32{float32(i + 1), 1},
		})
	}
	idx, err := Build(mustStore(t, chunks))
	if err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	// c9 points closest to the x axis.
	if hits[0].ID != "c9" {
		t.Fatalf("top hit = %s, want c9", hits[0].ID)
	}
}

func TestSearch_TiesBreakByInsertionOrder(t *testing.T) {
	store := mustStore(t, []corpus.Chunk{
		{ID: "first", Content: "x", Embedding: []float32{2, 0}},
		{ID: "second", Content: "y", Embedding: []float32{3, 0}},
		{ID: "third", Content: "z", Embedding: []float32{4, 0}},
	})
	idx, err := Build(store)
	if err != nil {
		t.Fatal(err)
	}

	// All three share cosine similarity 1 with the query; insertion order
	// must decide.
	for run := 0; run < 10; run++ {
		hits, err := idx.Search([]float32{1, 0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].ID != "first" || hits[1].ID != "second" {
			t.Fatalf("run %d: order = %s %s, want first second", run, hits[0].ID, hits[1].ID)
		}
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx, err := Build(mustStore(t, []corpus.Chunk{
		{ID: "a", Content: "x", Embedding: []float32{1, 0}},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	idx, err := Build(mustStore(t, []corpus.Chunk{
		{ID: "a", Content: "x", Embedding: []float32{1, 0}},
	}))
	if err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search([]float32{0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Fatalf("expected no hits for zero vector, got %v", hits)
	}
}
