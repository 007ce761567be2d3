// Package agent defines the routable answering personas and the router that
// picks which one handles a query. An agent is configuration (keywords,
// prompt instructions, thresholds) plus two pure matching functions; all
// conversational state lives elsewhere.
package agent

import (
	"strings"
	"unicode"
)

// MatchMode selects how MatchSpec phrases are compared against a query.
type MatchMode int

const (
	// MatchSubstring matches a phrase anywhere in the lower-cased query.
	// Tolerant of Russian inflection and typos at the cost of occasional
	// false positives.
	MatchSubstring MatchMode = iota
	// MatchWholeWord matches a phrase only against whole query tokens.
	MatchWholeWord
)

// MatchSpec is an explicit, injectable matching rule: a set of phrases and
// the mode they are compared in.
type MatchSpec struct {
	Phrases []string
	Mode    MatchMode
}

// Matches reports whether any of the phrases occurs in the query under the
// configured mode. Comparison is case-insensitive.
func (ms MatchSpec) Matches(query string) bool {
	lowered := strings.ToLower(query)
	switch ms.Mode {
	case MatchWholeWord:
		tokens := tokenSet(lowered)
		for _, p := range ms.Phrases {
			if tokens[strings.ToLower(p)] {
				return true
			}
		}
		return false
	default:
		for _, p := range ms.Phrases {
			if strings.Contains(lowered, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
}

// Agent is one answering persona.
type Agent struct {
	// Name identifies the agent; it keys the secondary-affinity table and
	// the feedback store.
	Name string
	// Description is a short human-readable purpose line.
	Description string
	// Spec is the matching rule used by the router.
	Spec MatchSpec
	// Instructions is the persona system-prompt text the answer generator
	// builds on.
	Instructions string
	// ConfidenceThreshold is the minimum top retrieval score below which
	// the answer pipeline consults web search for supplementary context.
	ConfidenceThreshold float32
	// Fallback marks the catch-all persona. Exactly one registered agent
	// may set it.
	Fallback bool
}

// Matches reports whether the agent's keywords occur in the query.
func (a *Agent) Matches(query string) bool {
	return a.Spec.Matches(query)
}

// Specificity counts the agent's phrases that equal a whole query token.
// It is a stricter measure than Matches and is used only to break routing
// ties among matching agents.
func (a *Agent) Specificity(query string) int {
	tokens := tokenSet(strings.ToLower(query))
	n := 0
	for _, p := range a.Spec.Phrases {
		if tokens[strings.ToLower(p)] {
			n++
		}
	}
	return n
}

// Tokenize splits text into lower-cased whole tokens over alphanumeric
// Unicode word characters.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(lowered string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokenize(lowered) {
		set[t] = true
	}
	return set
}
