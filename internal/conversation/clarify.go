package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/upravdom/upravdom/internal/engine"
)

const clarifyTimeout = 15 * time.Second

// GenericClarification is asked when the clarification analysis itself
// fails; the turn degrades instead of aborting.
const GenericClarification = "Уточните, пожалуйста, детали: что именно " +
	"произошло, какая услуга и какой период вас интересует?"

// Analysis is the structured result of the clarification-need check.
type Analysis struct {
	NeedsClarification bool   `json:"needs_clarification"`
	Question           string `json:"question"`
	Summary            string `json:"summary"`
}

// Clarifier judges whether a query is answerable as-is using a structured
// generation call.
type Clarifier struct {
	engine engine.Engine
	model  string
}

// NewClarifier creates a Clarifier using the given engine and model.
func NewClarifier(e engine.Engine, model string) *Clarifier {
	return &Clarifier{engine: e, model: model}
}

// Analyze returns whether the query needs clarification, a clarifying
// question when it does, and a cleaned-up summary of the query when it does
// not. Errors are returned to the caller, which degrades to the generic
// clarification prompt.
func (c *Clarifier) Analyze(ctx context.Context, query string) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, clarifyTimeout)
	defer cancel()

	prompt := "Оцени вопрос пользователя к консультанту по ЖКХ. Если в нём не " +
		"хватает ключевых деталей для ответа (услуга, период, кто спрашивает), " +
		"верни needs_clarification=true и один уточняющий вопрос. Иначе верни " +
		"needs_clarification=false и краткую переформулировку вопроса в summary.\n" +
		"Вопрос: " + query

	raw, err := c.engine.Chat(ctx, c.model, []engine.Message{
		{Role: "user", Content: prompt},
	}, analysisSchema())
	if err != nil {
		return Analysis{}, fmt.Errorf("clarification analysis: %w", err)
	}

	a, err := parseAnalysis(raw)
	if err != nil {
		return Analysis{}, fmt.Errorf("clarification analysis: %w", err)
	}
	return a, nil
}

func analysisSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"needs_clarification": {Type: "boolean", Description: "Whether the query lacks details needed to answer"},
			"question":            {Type: "string", Description: "The single clarifying question to ask"},
			"summary":             {Type: "string", Description: "Concise restatement of an answerable query"},
		},
		Required: []string{"needs_clarification", "question", "summary"},
	}
}

// parseAnalysis tolerates markdown fences and conversational filler around
// the JSON object, which small local models frequently produce.
func parseAnalysis(raw string) (Analysis, error) {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return Analysis{}, fmt.Errorf("no JSON object in response")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
		return Analysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return a, nil
}
