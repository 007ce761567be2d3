// Package answer builds the final prompt for the selected persona, invokes
// the generation engine, and sanitizes the result. Every failure mode
// degrades to a fixed user-safe string; raw errors never reach the user.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/upravdom/upravdom/internal/agent"
	"github.com/upravdom/upravdom/internal/composer"
	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/engine"
	"github.com/upravdom/upravdom/internal/feedback"
	"github.com/upravdom/upravdom/internal/retrieval"
	"github.com/upravdom/upravdom/internal/websearch"
)

// Apology replaces the answer when generation fails outright.
const Apology = "К сожалению, сейчас не получилось подготовить ответ. " +
	"Попробуйте переформулировать вопрос или повторите попытку чуть позже."

const (
	defaultTimeout      = 90 * time.Second
	feedbackSampleSize  = 3
	webSearchMaxResults = 3
)

// Searcher is the web-search collaborator consulted on low-confidence
// retrievals. *websearch.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error)
}

// Sampler supplies feedback exemplars for prompt steering.
// *feedback.Store satisfies it.
type Sampler interface {
	Sample(agentName string, n int) ([]feedback.Record, error)
}

// Answer is one generated reply with its provenance.
type Answer struct {
	Text      string
	AgentName string
	ChunkIDs  []string
	WebUsed   bool
	Sanitized bool
}

// Generator runs the retrieval-to-text half of the pipeline for an already
// routed query.
type Generator struct {
	engine    engine.Engine
	model     string
	retriever *retrieval.Retriever
	budget    composer.Budget
	topK      int
	search    Searcher // optional
	sampler   Sampler  // optional
	timeout   time.Duration
}

// NewGenerator wires a Generator. search and sampler may be nil, disabling
// web supplementation and feedback exemplars respectively. Non-positive
// topK and timeout fall back to package defaults.
func NewGenerator(eng engine.Engine, model string, retriever *retrieval.Retriever, budget composer.Budget, topK int, search Searcher, sampler Sampler, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{
		engine:    eng,
		model:     model,
		retriever: retriever,
		budget:    budget,
		topK:      topK,
		search:    search,
		sampler:   sampler,
		timeout:   timeout,
	}
}

// Generate answers the query as the given persona. It returns
// corpus.ErrNoData when the corpus is empty (the caller replies without a
// generation call); any generation failure degrades to the Apology text
// rather than an error.
func (g *Generator) Generate(ctx context.Context, query string, role retrieval.Role, primary *agent.Agent, secondary []*agent.Agent) (Answer, error) {
	// Template-answerable queries (greetings, meta-questions) skip
	// retrieval entirely; only the fallback persona has such templates.
	if primary.Fallback {
		if reply, ok := agent.TemplateReply(query); ok {
			return Answer{Text: reply, AgentName: primary.Name}, nil
		}
	}

	scored, err := g.retriever.Retrieve(ctx, retrieval.Query{Text: query, Role: role, TopK: g.topK})
	if err != nil {
		if errors.Is(err, corpus.ErrNoData) {
			return Answer{}, corpus.ErrNoData
		}
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	units := composer.Fit(scored, g.budget)
	contextBlock := composer.Render(units)

	ans := Answer{AgentName: primary.Name}
	for _, u := range units {
		ans.ChunkIDs = append(ans.ChunkIDs, u.ChunkID)
	}

	// Low retrieval confidence: pull supplementary snippets from the web.
	// Search failure degrades to an inline note; the turn continues. The
	// block is built within whatever budget the corpus context left over,
	// so the rendered context as a whole stays inside the token budget.
	if g.search != nil && topScore(scored) < primary.ConfidenceThreshold {
		remaining := g.budget.MaxTokens
		if remaining <= 0 {
			remaining = composer.DefaultBudget().MaxTokens
		}
		remaining -= composer.EstimateTokens(contextBlock)
		if contextBlock != "" {
			remaining -= composer.EstimateTokens(composer.Separator)
		}

		block, used := g.webBlock(ctx, query, remaining)
		if block != "" {
			if contextBlock != "" {
				contextBlock += composer.Separator
			}
			contextBlock += block
		}
		ans.WebUsed = used
	}

	prompt := g.buildPrompt(primary, secondary, contextBlock)

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.engine.Chat(genCtx, g.model, []engine.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: query},
	}, nil)
	if err != nil {
		slog.Warn("answer generation failed", "agent", primary.Name, "error", err)
		ans.Text = Apology
		return ans, nil
	}

	ans.Text, ans.Sanitized = Sanitize(text, contextBlock)
	return ans, nil
}

func topScore(scored []retrieval.ScoredChunk) float32 {
	var top float32
	for _, sc := range scored {
		if sc.Score > top {
			top = sc.Score
		}
	}
	return top
}

// webBlock runs the web search and renders as many result lines as fit in
// maxTokens, or the standard unavailability note when search fails. An empty
// block means nothing fit (or nothing was found).
func (g *Generator) webBlock(ctx context.Context, query string, maxTokens int) (block string, used bool) {
	results, err := g.search.Search(ctx, query, webSearchMaxResults)
	if err != nil {
		slog.Warn("web search unavailable", "error", err)
		if composer.EstimateTokens(websearch.Unavailable) > maxTokens {
			return "", false
		}
		return websearch.Unavailable, false
	}
	if len(results) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("Дополнительные сведения из открытых источников:\n")
	remaining := maxTokens - composer.EstimateTokens(sb.String())

	var added int
	for _, r := range results {
		line := fmt.Sprintf("- %s (%s): %s\n", r.Title, r.URL, r.Body)
		cost := composer.EstimateTokens(line)
		if cost > remaining {
			continue
		}
		sb.WriteString(line)
		remaining -= cost
		added++
	}
	if added == 0 {
		return "", false
	}
	return sb.String(), true
}

// buildPrompt assembles the system prompt: persona instructions, consult
// hints from the secondary agents, the bounded context block, and feedback
// exemplars when enough exist.
func (g *Generator) buildPrompt(primary *agent.Agent, secondary []*agent.Agent, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString(primary.Instructions)
	sb.WriteString("\n\nОтвечай только на основе приведённого ниже контекста. ")
	sb.WriteString("Не выдумывай ссылки, телефоны и адреса.")

	if len(secondary) > 0 {
		sb.WriteString("\n\nСмежные темы, которые могут быть затронуты в вопросе:")
		for _, s := range secondary {
			fmt.Fprintf(&sb, "\n- %s: %s", s.Name, s.Description)
		}
	}

	sb.WriteString("\n\n[Контекст]\n")
	if contextBlock == "" {
		sb.WriteString("(по запросу ничего не найдено)")
	} else {
		sb.WriteString(contextBlock)
	}

	if g.sampler != nil {
		records, err := g.sampler.Sample(primary.Name, feedbackSampleSize)
		if err != nil {
			slog.Warn("feedback sampling failed", "agent", primary.Name, "error", err)
		}
		if len(records) > 0 {
			sb.WriteString("\n\n[Примеры удачных ответов]")
			for _, rec := range records {
				fmt.Fprintf(&sb, "\nВопрос: %s\nОтвет: %s\n", rec.Query, rec.Answer)
			}
		}
	}

	return sb.String()
}
