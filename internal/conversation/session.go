// Package conversation drives the multi-turn dialogue: question intake,
// optional clarification, answer generation, and rating capture. The state
// machine is total: every (stage, input) pair has a defined next stage and
// no input can leave a session stuck.
package conversation

import "github.com/upravdom/upravdom/internal/retrieval"

// Stage is the conversation state.
type Stage int

const (
	// AwaitingQuestion is the initial stage; the machine cycles back to it.
	AwaitingQuestion Stage = iota
	// AwaitingClarification means a clarification question was asked and
	// the next user message is its answer.
	AwaitingClarification
	// AwaitingRating means an answer was produced and a 1-5 rating is
	// expected (but not required).
	AwaitingRating
)

// String returns the stage name for logs.
func (s Stage) String() string {
	switch s {
	case AwaitingQuestion:
		return "awaiting_question"
	case AwaitingClarification:
		return "awaiting_clarification"
	case AwaitingRating:
		return "awaiting_rating"
	default:
		return "unknown"
	}
}

// Turn is one user/system exchange, append-only.
type Turn struct {
	UserText   string
	SystemText string
}

// Session is the per-conversation state, mutated only by the Controller and
// discarded when the conversation ends. It must not be shared across
// concurrent users.
type Session struct {
	ID    string
	Stage Stage
	Role  retrieval.Role

	// OriginalQuery and Summary are set while a clarification round is
	// pending.
	OriginalQuery string
	Summary       string

	// LastQuery, LastAnswer, and LastAgent describe the answer awaiting a
	// rating.
	LastQuery  string
	LastAnswer string
	LastAgent  string

	History []Turn
}

// NewSession creates a session at the initial stage.
func NewSession(id string, role retrieval.Role) *Session {
	return &Session{ID: id, Role: role}
}

// reset clears transient state and returns to AwaitingQuestion. History is
// kept.
func (s *Session) reset() {
	s.Stage = AwaitingQuestion
	s.OriginalQuery = ""
	s.Summary = ""
	s.LastQuery = ""
	s.LastAnswer = ""
	s.LastAgent = ""
}

// record appends a turn to the history.
func (s *Session) record(userText, systemText string) {
	s.History = append(s.History, Turn{UserText: userText, SystemText: systemText})
}
