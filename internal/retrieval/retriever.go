// Package retrieval turns a user query into a relevance-ordered set of
// corpus chunks: vector search with overfetch, deterministic theme and role
// boosting, and thematic backfill of legally load-bearing passages.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/index"
)

// Role distinguishes whose side of a housing dispute the answer is built
// for. It shifts the balance between statutory text and judicial practice.
type Role int

const (
	// RoleMixed applies no role-based score adjustment.
	RoleMixed Role = iota
	// RoleResident favours statutory and regulatory sources.
	RoleResident
	// RoleExecutor favours judicial practice (management companies care
	// how courts actually rule).
	RoleExecutor
)

// Query describes one retrieval request.
type Query struct {
	Text string
	Role Role
	TopK int
}

// ScoredChunk pairs a corpus chunk with its boosted relevance score. It is
// transient: produced during ranking, consumed by the composer, never stored.
type ScoredChunk struct {
	Chunk corpus.Chunk
	Score float32
}

const (
	// overfetch widens the vector search so boosting has candidates to
	// reorder before truncation back to TopK.
	overfetch = 3

	// themeBoost multiplies the score of a candidate matching a detected
	// query theme.
	themeBoost = 1.3

	// roleBoost and roleDamp adjust statutory vs judicial-practice chunks
	// depending on the query role.
	roleBoost = 1.2
	roleDamp  = 0.9

	// backfillScore is the fixed score injected for thematically required
	// chunks that vector search missed. It slots them just below perfect
	// matches.
	backfillScore = 0.95

	defaultTopK = 5
)

// Corpus tags separating statute text from court practice.
const (
	TagStatute  = "норматив"
	TagPractice = "практика"
)

// QueryEmbedder turns query text into a vector. *Embedder satisfies it; tests
// substitute fixtures.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever combines the vector index with the chunk store.
type Retriever struct {
	embedder QueryEmbedder
	index    *index.Index
	store    *corpus.Store
	themes   ThemeSet
}

// NewRetriever wires a Retriever. A nil themes falls back to DefaultThemes.
func NewRetriever(embedder QueryEmbedder, idx *index.Index, store *corpus.Store, themes ThemeSet) *Retriever {
	if themes == nil {
		themes = DefaultThemes()
	}
	return &Retriever{embedder: embedder, index: idx, store: store, themes: themes}
}

// Retrieve runs the full ranking pipeline and returns chunks ordered by
// descending boosted score, with thematic backfill appended. The result is
// deterministic for identical inputs: boosting works on score copies and
// every tie-break is positional.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]ScoredChunk, error) {
	if r.store == nil || r.store.Len() == 0 || r.index == nil || r.index.Len() == 0 {
		return nil, corpus.ErrNoData
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}

	vec, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.index.Search(vec, q.TopK*overfetch)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	lowered := strings.ToLower(q.Text)
	themes := r.themes.Detect(lowered)

	scored := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		chunk, ok := r.store.Get(h.ID)
		if !ok {
			continue // index and corpus out of sync; skip rather than fail the query
		}
		scored = append(scored, ScoredChunk{
			Chunk: chunk,
			Score: boost(h.Score, chunk, themes, q.Role),
		})
	}

	// Re-sort by boosted score; SliceStable keeps similarity order for
	// equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > q.TopK {
		scored = scored[:q.TopK]
	}

	return r.backfill(scored, themes), nil
}

// boost applies theme and role multipliers to a copy of the base similarity
// score. Multipliers compose, so application order does not matter.
func boost(base float32, chunk corpus.Chunk, themes []string, role Role) float32 {
	score := base
	loweredContent := strings.ToLower(chunk.Content)
	for _, label := range themes {
		if chunk.HasTag(label) || strings.Contains(loweredContent, label) {
			score *= themeBoost
		}
	}

	switch role {
	case RoleResident:
		if chunk.HasTag(TagStatute) {
			score *= roleBoost
		}
		if chunk.HasTag(TagPractice) {
			score *= roleDamp
		}
	case RoleExecutor:
		if chunk.HasTag(TagPractice) {
			score *= roleBoost
		}
		if chunk.HasTag(TagStatute) {
			score *= roleDamp
		}
	}
	return score
}

// backfill appends, for every detected theme, the corpus chunks tagged with
// that theme which vector search did not select. Certain passages (liability
// rules for leaks, capital-repair fund obligations) must never be dropped
// purely on an embedding miss. Order: theme discovery order, then corpus
// order; duplicates are suppressed by chunk id.
func (r *Retriever) backfill(selected []ScoredChunk, themes []string) []ScoredChunk {
	if len(themes) == 0 {
		return selected
	}

	present := make(map[string]bool, len(selected))
	for _, sc := range selected {
		present[sc.Chunk.ID] = true
	}

	out := selected
	for _, label := range themes {
		for _, chunk := range r.store.ByTag(label) {
			if present[chunk.ID] {
				continue
			}
			present[chunk.ID] = true
			out = append(out, ScoredChunk{Chunk: chunk, Score: backfillScore})
		}
	}
	return out
}
