// Package composer turns ranked retrieval results into the bounded context
// block that is pasted into the answer prompt. Ranking decides order;
// composer decides how much of it fits and how it is rendered.
package composer

import (
	"sort"
	"strings"

	"github.com/upravdom/upravdom/internal/retrieval"
)

const defaultMaxTokens = 4000

// Separator is inserted between accepted context units in the rendered block.
const Separator = "\n\n---\n\n"

// Budget caps the estimated token size of the assembled context.
type Budget struct {
	MaxTokens int
}

// DefaultBudget returns the standard context allowance.
func DefaultBudget() Budget {
	return Budget{MaxTokens: defaultMaxTokens}
}

// Unit is one accepted piece of context: a whole chunk, or a sentence-level
// excerpt when the top candidate alone exceeds the budget.
type Unit struct {
	ChunkID string
	Source  string
	Text    string
	Score   float32
}

// Fit selects context units under the budget. Chunks are taken whole, in
// descending score order; a chunk that does not fit is skipped and smaller
// ones are still considered. When the single best chunk already exceeds the
// budget, it is split into sentences and those are accepted greedily
// instead; no further chunks are considered in that mode. When any
// candidate exists the result is never empty: at minimum the first sentence
// of the best chunk is returned.
func Fit(chunks []retrieval.ScoredChunk, budget Budget) []Unit {
	if len(chunks) == 0 {
		return nil
	}
	if budget.MaxTokens <= 0 {
		budget = DefaultBudget()
	}

	sorted := make([]retrieval.ScoredChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	sepTokens := EstimateTokens(Separator)

	first := sorted[0]
	if EstimateTokens(first.Chunk.Content) > budget.MaxTokens {
		return fitSentences(first, budget)
	}

	var units []Unit
	remaining := budget.MaxTokens
	for _, sc := range sorted {
		cost := EstimateTokens(sc.Chunk.Content)
		if len(units) > 0 {
			cost += sepTokens
		}
		if cost > remaining {
			continue
		}
		units = append(units, Unit{
			ChunkID: sc.Chunk.ID,
			Source:  sc.Chunk.Source,
			Text:    sc.Chunk.Content,
			Score:   sc.Score,
		})
		remaining -= cost
	}
	return units
}

// fitSentences accepts sentences of the top chunk greedily until the budget
// is exhausted. The first sentence is always taken so a non-empty corpus
// never yields an empty context.
func fitSentences(sc retrieval.ScoredChunk, budget Budget) []Unit {
	sentences := SplitSentences(sc.Chunk.Content)
	if len(sentences) == 0 {
		return nil
	}

	var picked []string
	remaining := budget.MaxTokens
	for i, s := range sentences {
		cost := EstimateTokens(s)
		if i > 0 {
			cost++ // joining space
		}
		if cost > remaining && i > 0 {
			break
		}
		picked = append(picked, s)
		remaining -= cost
	}

	return []Unit{{
		ChunkID: sc.Chunk.ID,
		Source:  sc.Chunk.Source,
		Text:    strings.Join(picked, " "),
		Score:   sc.Score,
	}}
}

// Render concatenates accepted units in their given (descending-score)
// order, separated by Separator.
func Render(units []Unit) string {
	if len(units) == 0 {
		return ""
	}
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.Text
	}
	return strings.Join(parts, Separator)
}

// EstimateTokens provides a rough token count using the 4 chars per token
// heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// sentenceEnders terminate a sentence. The ellipsis and Russian-typography
// cases matter for the corpus this assistant serves.
var sentenceEnders = map[rune]bool{'.': true, '!': true, '?': true, '…': true}

// SplitSentences breaks text into trimmed sentences, keeping terminal
// punctuation attached. Consecutive enders ("?!", "...") stay with the
// sentence they close.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if !sentenceEnders[r] {
			continue
		}
		if i+1 < len(runes) && sentenceEnders[runes[i+1]] {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
