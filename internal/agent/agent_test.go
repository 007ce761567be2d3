package agent

import (
	"reflect"
	"testing"
)

func TestMatchSpec_Substring(t *testing.T) {
	spec := MatchSpec{Phrases: []string{"тариф", "плата"}}
	tests := []struct {
		query string
		want  bool
	}{
		{"почему вырос тариф на воду", true},
		{"ТАРИФЫ опять подняли", true},
		{"зарплата дворника", true}, // substring mode tolerates this
		{"когда собрание", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := spec.Matches(tt.query); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestMatchSpec_WholeWord(t *testing.T) {
	spec := MatchSpec{Phrases: []string{"суд", "иск"}, Mode: MatchWholeWord}
	tests := []struct {
		query string
		want  bool
	}{
		{"подать иск против УК", true},
		{"дело дошло до суда", false}, // inflection is not a whole-word hit
		{"посуда на кухне", false},
		{"Суд уже был", true},
	}
	for _, tt := range tests {
		if got := spec.Matches(tt.query); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Кто отвечает за стояк?", []string{"кто", "отвечает", "за", "стояк"}},
		{"ст. 154 ЖК РФ", []string{"ст", "154", "жк", "рф"}},
		{"  ", nil},
		{"слово", []string{"слово"}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.text)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSpecificity(t *testing.T) {
	a := &Agent{
		Name: "тарифы",
		Spec: MatchSpec{Phrases: []string{"тариф", "плата", "пени"}},
	}
	tests := []struct {
		query string
		want  int
	}{
		{"какой тариф действует", 1},
		{"тариф и плата выросли", 2},
		{"тарифы выросли", 0}, // inflected form is a substring match but not a whole token
		{"про собрание", 0},
	}
	for _, tt := range tests {
		if got := a.Specificity(tt.query); got != tt.want {
			t.Errorf("Specificity(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
