package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/upravdom/upravdom/internal/engine"
)

type stubEngine struct {
	reply string
	err   error
}

func (s *stubEngine) Chat(ctx context.Context, model string, msgs []engine.Message, schema *engine.Schema) (string, error) {
	return s.reply, s.err
}
func (s *stubEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
func (s *stubEngine) IsRunning(ctx context.Context) bool               { return true }
func (s *stubEngine) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (s *stubEngine) HasModel(ctx context.Context, name string) bool   { return true }
func (s *stubEngine) PullModel(ctx context.Context, name string, fn func(engine.PullProgress)) error {
	return nil
}

func TestAnalyze_RequestsSchema(t *testing.T) {
	eng := &stubEngine{reply: `{"needs_clarification": false, "question": "", "summary": "перерасчет за воду"}`}
	c := NewClarifier(eng, "clarify-model")

	a, err := c.Analyze(context.Background(), "пересчитайте воду")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.NeedsClarification {
		t.Fatal("NeedsClarification should be false")
	}
	if a.Summary != "перерасчет за воду" {
		t.Fatalf("summary = %q", a.Summary)
	}
}

func TestAnalyze_EngineErrorPropagates(t *testing.T) {
	c := NewClarifier(&stubEngine{err: errors.New("down")}, "m")
	if _, err := c.Analyze(context.Background(), "вопрос"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Analysis
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"needs_clarification": true, "question": "Какой период?", "summary": ""}`,
			want: Analysis{NeedsClarification: true, Question: "Какой период?"},
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"needs_clarification\": false, \"question\": \"\", \"summary\": \"кратко\"}\n```",
			want: Analysis{Summary: "кратко"},
		},
		{
			name: "conversational filler around object",
			raw:  "Вот результат: {\"needs_clarification\": false, \"question\": \"\", \"summary\": \"итог\"} — готово.",
			want: Analysis{Summary: "итог"},
		},
		{
			name:    "no json at all",
			raw:     "не могу ответить",
			wantErr: true,
		},
		{
			name:    "broken json",
			raw:     `{"needs_clarification": `,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnalysis: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
