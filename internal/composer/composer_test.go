package composer

import (
	"strings"
	"testing"

	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/retrieval"
)

func sc(id, content string, score float32) retrieval.ScoredChunk {
	return retrieval.ScoredChunk{
		Chunk: corpus.Chunk{ID: id, Content: content, Source: id + ".txt"},
		Score: score,
	}
}

func totalTokens(units []Unit) int {
	total := 0
	for i, u := range units {
		total += EstimateTokens(u.Text)
		if i > 0 {
			total += EstimateTokens(Separator)
		}
	}
	return total
}

func TestFit_EmptyInput(t *testing.T) {
	if got := Fit(nil, DefaultBudget()); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestFit_OrdersByScoreDescending(t *testing.T) {
	chunks := []retrieval.ScoredChunk{
		sc("low", "low scored text", 0.2),
		sc("high", "high scored text", 0.9),
		sc("mid", "mid scored text", 0.5),
	}
	units := Fit(chunks, Budget{MaxTokens: 1000})
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[0].ChunkID != "high" || units[1].ChunkID != "mid" || units[2].ChunkID != "low" {
		t.Fatalf("order = %s %s %s", units[0].ChunkID, units[1].ChunkID, units[2].ChunkID)
	}
}

func TestFit_SkipsOversizedAndContinues(t *testing.T) {
	big := strings.Repeat("ш", 400) // ~100 tokens... len in bytes is 800
	chunks := []retrieval.ScoredChunk{
		sc("small-top", "short", 0.9),
		sc("big", big, 0.8),
		sc("small-tail", "also short", 0.7),
	}
	units := Fit(chunks, Budget{MaxTokens: 20})
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2: %+v", len(units), units)
	}
	if units[0].ChunkID != "small-top" || units[1].ChunkID != "small-tail" {
		t.Fatalf("order = %s %s, want small-top small-tail", units[0].ChunkID, units[1].ChunkID)
	}
	if totalTokens(units) > 20 {
		t.Fatalf("budget exceeded: %d tokens", totalTokens(units))
	}
}

func TestFit_BudgetInvariant(t *testing.T) {
	chunks := []retrieval.ScoredChunk{
		sc("a", strings.Repeat("a", 40), 0.9),
		sc("b", strings.Repeat("b", 40), 0.8),
		sc("c", strings.Repeat("c", 40), 0.7),
		sc("d", strings.Repeat("d", 40), 0.6),
	}
	for _, budget := range []int{10, 15, 25, 50, 100} {
		units := Fit(chunks, Budget{MaxTokens: budget})
		if len(units) == 0 {
			t.Fatalf("budget %d: result must not be empty", budget)
		}
		if got := totalTokens(units); got > budget {
			t.Fatalf("budget %d exceeded: %d tokens", budget, got)
		}
	}
}

func TestFit_SentenceFallbackWhenBestChunkOversized(t *testing.T) {
	content := "Первое предложение про стояк. Второе предложение длиннее и подробнее. Третье предложение завершает."
	chunks := []retrieval.ScoredChunk{
		sc("big", content, 0.9),
		sc("small", "короткий", 0.5),
	}
	// Budget fits roughly the first sentence only.
	units := Fit(chunks, Budget{MaxTokens: 15})
	if len(units) != 1 {
		t.Fatalf("sentence mode must yield one unit, got %d", len(units))
	}
	if units[0].ChunkID != "big" {
		t.Fatalf("unit from %s, want big", units[0].ChunkID)
	}
	if !strings.HasPrefix(units[0].Text, "Первое предложение") {
		t.Fatalf("text = %q", units[0].Text)
	}
	if strings.Contains(units[0].Text, "Третье") {
		t.Fatalf("budget should have cut the third sentence: %q", units[0].Text)
	}
}

func TestFit_NeverEmptyEvenWhenFirstSentenceOversized(t *testing.T) {
	content := strings.Repeat("слово ", 100) + "."
	units := Fit([]retrieval.ScoredChunk{sc("huge", content, 0.9)}, Budget{MaxTokens: 5})
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Text == "" {
		t.Fatal("unit text must not be empty")
	}
}

func TestRender(t *testing.T) {
	units := []Unit{{Text: "один"}, {Text: "два"}}
	got := Render(units)
	want := "один" + Separator + "два"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
	if Render(nil) != "" {
		t.Fatal("Render(nil) should be empty")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple",
			text: "Первое. Второе. Третье.",
			want: []string{"Первое.", "Второе.", "Третье."},
		},
		{
			name: "mixed enders",
			text: "Кто платит? Управляющая организация! Вот так.",
			want: []string{"Кто платит?", "Управляющая организация!", "Вот так."},
		},
		{
			name: "consecutive enders stay attached",
			text: "Неужели?! Да... Именно так.",
			want: []string{"Неужели?!", "Да...", "Именно так."},
		},
		{
			name: "trailing fragment without ender",
			text: "Полное предложение. Хвост без точки",
			want: []string{"Полное предложение.", "Хвост без точки"},
		},
		{
			name: "ellipsis rune",
			text: "Подождите… Продолжим.",
			want: []string{"Подождите…", "Продолжим."},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
