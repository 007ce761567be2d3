package agent

import (
	"fmt"
	"strings"
)

// maxFallbackTokens is the whole-token count at or below which a query is
// considered too short for a specialist and is handed to the fallback agent.
const maxFallbackTokens = 2

// Registry holds the registered agents in registration order plus the
// static secondary-affinity table. It is assembled once at startup and
// read-only afterwards.
type Registry struct {
	agents     []*Agent
	fallback   *Agent
	affinities map[string][]string
	triggers   []string
}

// NewRegistry creates an empty registry. affinities maps a primary agent
// name to the ordered names of its consult (secondary) agents; triggers are
// lower-cased phrases (greetings, insults, meta-questions) that always route
// to the fallback agent.
func NewRegistry(affinities map[string][]string, triggers []string) *Registry {
	return &Registry{
		affinities: affinities,
		triggers:   triggers,
	}
}

// Register appends an agent. Registration order is significant: it is the
// routing tie-break. Registering a second fallback or a duplicate name is a
// configuration error.
func (r *Registry) Register(a *Agent) error {
	if a.Name == "" {
		return fmt.Errorf("agent: empty name")
	}
	for _, existing := range r.agents {
		if existing.Name == a.Name {
			return fmt.Errorf("agent: duplicate name %q", a.Name)
		}
	}
	if a.Fallback {
		if r.fallback != nil {
			return fmt.Errorf("agent: fallback already registered (%s)", r.fallback.Name)
		}
		r.fallback = a
	}
	r.agents = append(r.agents, a)
	return nil
}

// Fallback returns the registered catch-all agent, or nil.
func (r *Registry) Fallback() *Agent {
	return r.fallback
}

// Agents returns the registered agents in registration order. Read-only.
func (r *Registry) Agents() []*Agent {
	return r.agents
}

// Get returns the agent with the given name.
func (r *Registry) Get(name string) (*Agent, bool) {
	for _, a := range r.agents {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Route selects the primary agent for the query and its static secondary
// list. It is total: any non-empty query yields a non-nil primary as long
// as a fallback agent is registered.
//
// Fallback wins outright for trigger phrases and for queries of at most two
// whole tokens; such queries carry too little signal for keyword routing.
// Otherwise the matching specialist with the highest specificity wins, ties
// broken by registration order.
func (r *Registry) Route(query string) (primary *Agent, secondary []*Agent) {
	if r.isFallbackQuery(query) {
		return r.fallback, nil
	}

	var best *Agent
	bestSpec := -1
	for _, a := range r.agents {
		if a.Fallback || !a.Matches(query) {
			continue
		}
		// Strictly greater keeps the earlier registration on ties.
		if s := a.Specificity(query); s > bestSpec {
			best, bestSpec = a, s
		}
	}
	if best == nil {
		return r.fallback, nil
	}
	return best, r.secondaries(best)
}

// secondaries resolves the affinity table for the primary, dropping unknown
// names and the primary itself (a misconfigured table must not make an
// agent consult itself).
func (r *Registry) secondaries(primary *Agent) []*Agent {
	var out []*Agent
	for _, name := range r.affinities[primary.Name] {
		if name == primary.Name {
			continue
		}
		if a, ok := r.Get(name); ok {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) isFallbackQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, t := range r.triggers {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return len(Tokenize(query)) <= maxFallbackTokens
}
