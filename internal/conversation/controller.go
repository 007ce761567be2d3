package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/upravdom/upravdom/internal/agent"
	"github.com/upravdom/upravdom/internal/answer"
	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/feedback"
	"github.com/upravdom/upravdom/internal/retrieval"
)

// User-visible strings for the non-answer paths. Worded as next steps, not
// errors.
const (
	NoDataReply = "База знаний пока не загружена, поэтому ответить не " +
		"получится. Обратитесь к администратору сервиса «Управдом»."
	EmptyInputReply = "Задайте, пожалуйста, вопрос о жилищно-коммунальных " +
		"услугах — например, о начислениях, аварии или капремонте."
	ratingThanksReply = "Спасибо за высокую оценку! Она поможет отвечать " +
		"точнее. Задавайте следующий вопрос."
	ratingAckReply = "Спасибо за оценку, учтём. Попробуйте переформулировать " +
		"вопрос — возможно, получится ответить точнее."
	rateOrAskReply = "Оцените, пожалуйста, ответ от 1 до 5 — или просто " +
		"задайте следующий вопрос."
)

// acceptedRating is the minimum raw 1-5 rating that produces a feedback
// record (normalized to rating/5).
const acceptedRating = 4

// Input is one user submission: free text and/or an explicit rating.
// Rating 0 means "no rating supplied".
type Input struct {
	Message string
	Rating  int
}

// Reply is what the conversation surface renders back.
type Reply struct {
	Text                string
	Stage               Stage
	RatingVisible       bool
	RatingSubmitVisible bool
}

// Router selects the answering persona for a query.
type Router interface {
	Route(query string) (primary *agent.Agent, secondary []*agent.Agent)
}

// Generator produces the answer for a routed query.
type Generator interface {
	Generate(ctx context.Context, query string, role retrieval.Role, primary *agent.Agent, secondary []*agent.Agent) (answer.Answer, error)
}

// FeedbackWriter persists accepted ratings.
type FeedbackWriter interface {
	Append(agentName string, rec feedback.Record) error
}

// ClarifyAnalyzer judges whether a question needs a clarification round.
type ClarifyAnalyzer interface {
	Analyze(ctx context.Context, query string) (Analysis, error)
}

// Controller is the conversation state machine. One Controller serves many
// sessions; all per-conversation state lives in the Session, so a session
// must stay pinned to a single logical worker.
type Controller struct {
	clarifier ClarifyAnalyzer
	router    Router
	generator Generator
	feedback  FeedbackWriter
}

// NewController wires the conversation controller. feedback may be nil,
// which disables rating persistence but not rating acknowledgement.
func NewController(clarifier ClarifyAnalyzer, router Router, generator Generator, fb FeedbackWriter) *Controller {
	return &Controller{clarifier: clarifier, router: router, generator: generator, feedback: fb}
}

// Respond advances the session by one input and returns the reply. Every
// failure is absorbed into a user-safe reply; Respond itself never returns
// an error to the surface.
func (c *Controller) Respond(ctx context.Context, sess *Session, in Input) Reply {
	in.Message = strings.TrimSpace(in.Message)

	var reply Reply
	switch sess.Stage {
	case AwaitingQuestion:
		reply = c.onQuestion(ctx, sess, in)
	case AwaitingClarification:
		reply = c.onClarification(ctx, sess, in)
	case AwaitingRating:
		reply = c.onRating(ctx, sess, in)
	default:
		// Unknown stage value: reset rather than getting stuck.
		sess.reset()
		reply = Reply{Text: EmptyInputReply, Stage: sess.Stage}
	}

	sess.record(in.Message, reply.Text)
	return reply
}

// onQuestion handles a fresh question: clarification analysis, then either
// a clarification round or the full answer pipeline.
func (c *Controller) onQuestion(ctx context.Context, sess *Session, in Input) Reply {
	if in.Message == "" {
		sess.reset()
		return Reply{Text: EmptyInputReply, Stage: sess.Stage}
	}

	a, err := c.clarifier.Analyze(ctx, in.Message)
	if err != nil {
		slog.Warn("clarification analysis failed, asking generic question", "error", err)
		sess.Stage = AwaitingClarification
		sess.OriginalQuery = in.Message
		sess.Summary = ""
		return Reply{Text: GenericClarification, Stage: sess.Stage}
	}

	if a.NeedsClarification {
		question := strings.TrimSpace(a.Question)
		if question == "" {
			question = GenericClarification
		}
		sess.Stage = AwaitingClarification
		sess.OriginalQuery = in.Message
		sess.Summary = a.Summary
		return Reply{Text: question, Stage: sess.Stage}
	}

	query := strings.TrimSpace(a.Summary)
	if query == "" {
		query = in.Message
	}
	return c.answer(ctx, sess, query)
}

// onClarification combines the stored original query with the user's reply
// and runs the answer pipeline.
func (c *Controller) onClarification(ctx context.Context, sess *Session, in Input) Reply {
	if in.Message == "" {
		// Nothing to combine; fall back to the stored original.
		if sess.OriginalQuery == "" {
			sess.reset()
			return Reply{Text: EmptyInputReply, Stage: sess.Stage}
		}
		return c.answer(ctx, sess, sess.OriginalQuery)
	}

	combined := sess.OriginalQuery
	if combined == "" {
		combined = in.Message
	} else {
		combined = combined + " " + in.Message
	}
	return c.answer(ctx, sess, combined)
}

// onRating captures a rating, or treats unrated text as a brand-new
// question (the pending rating opportunity is silently dropped).
func (c *Controller) onRating(ctx context.Context, sess *Session, in Input) Reply {
	rating := in.Rating
	if rating == 0 {
		rating = parseRating(in.Message)
	}

	if rating >= 1 && rating <= 5 {
		text := ratingAckReply
		if rating >= acceptedRating {
			c.store(sess, rating)
			text = ratingThanksReply
		}
		sess.reset()
		return Reply{Text: text, Stage: sess.Stage}
	}

	if in.Message != "" {
		// New question instead of a rating.
		sess.reset()
		return c.onQuestion(ctx, sess, in)
	}

	// Unrecognized input (out-of-range rating, empty message): remind once
	// and return to the initial stage to stay unstuck.
	if in.Rating != 0 {
		sess.reset()
		return Reply{Text: rateOrAskReply, Stage: sess.Stage}
	}
	sess.reset()
	return Reply{Text: EmptyInputReply, Stage: sess.Stage}
}

// answer routes the query and generates the reply, moving the session to
// AwaitingRating on success.
func (c *Controller) answer(ctx context.Context, sess *Session, query string) Reply {
	primary, secondary := c.router.Route(query)
	if primary == nil {
		// No fallback registered is a wiring bug; degrade without crashing.
		slog.Error("router returned no primary agent", "query", query)
		sess.reset()
		return Reply{Text: answer.Apology, Stage: sess.Stage}
	}

	ans, err := c.generator.Generate(ctx, query, sess.Role, primary, secondary)
	if err != nil {
		if errors.Is(err, corpus.ErrNoData) {
			sess.reset()
			return Reply{Text: NoDataReply, Stage: sess.Stage}
		}
		slog.Warn("answer pipeline failed", "agent", primary.Name, "error", err)
		sess.reset()
		return Reply{Text: answer.Apology, Stage: sess.Stage}
	}

	sess.Stage = AwaitingRating
	sess.OriginalQuery = ""
	sess.Summary = ""
	sess.LastQuery = query
	sess.LastAnswer = ans.Text
	sess.LastAgent = ans.AgentName
	return Reply{
		Text:                ans.Text,
		Stage:               sess.Stage,
		RatingVisible:       true,
		RatingSubmitVisible: true,
	}
}

// store persists an accepted rating for the agent that answered LastQuery.
func (c *Controller) store(sess *Session, rating int) {
	if c.feedback == nil || sess.LastAgent == "" {
		return
	}
	rec := feedback.Record{
		Query:     sess.LastQuery,
		Answer:    sess.LastAnswer,
		Rating:    float64(rating) / 5,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.feedback.Append(sess.LastAgent, rec); err != nil {
		slog.Warn("storing feedback failed", "agent", sess.LastAgent, "error", err)
	}
}

// parseRating interprets a bare numeric message as a 1-5 rating. Returns 0
// when the message is not a rating.
func parseRating(message string) int {
	n, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil {
		return 0
	}
	if n < 1 || n > 5 {
		return 0
	}
	return n
}
