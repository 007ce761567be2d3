// Package api exposes the conversation surface: a small chi-based HTTP API
// and an MCP server. All business logic lives behind the conversation
// controller; handlers translate between transport and domain types.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/upravdom/upravdom/internal/conversation"
	"github.com/upravdom/upravdom/internal/retrieval"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Responder advances a conversation session. *conversation.Controller
// satisfies it.
type Responder interface {
	Respond(ctx context.Context, sess *conversation.Session, in conversation.Input) conversation.Reply
}

const (
	// sessionIdleTTL bounds how long an untouched conversation survives.
	sessionIdleTTL = 30 * time.Minute
	// maxSessions caps the registry; the longest-idle conversation is
	// evicted first, mirroring the bounded retention of the feedback store.
	maxSessions = 1000
)

// Sessions keeps live conversations keyed by id. Each session carries its
// own lock so concurrent requests for one conversation are serialized while
// different conversations proceed in parallel. Idle and over-cap sessions
// are evicted when new ones are created; an evicted conversation simply
// starts over on its next request.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	cap     int
	now     func() time.Time
}

type sessionEntry struct {
	mu       sync.Mutex
	sess     *conversation.Session
	lastSeen time.Time
}

// NewSessions creates an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{
		entries: make(map[string]*sessionEntry),
		ttl:     sessionIdleTTL,
		cap:     maxSessions,
		now:     time.Now,
	}
}

// acquire returns the locked entry for id, creating a session when id is
// empty or unknown. The caller must unlock the entry.
func (s *Sessions) acquire(id string, role retrieval.Role) (*sessionEntry, string) {
	s.mu.Lock()
	if id == "" {
		id = uuid.NewString()
	}
	e, ok := s.entries[id]
	if !ok {
		s.evictLocked()
		e = &sessionEntry{sess: conversation.NewSession(id, role)}
		s.entries[id] = e
	}
	e.lastSeen = s.now()
	s.mu.Unlock()

	e.mu.Lock()
	return e, id
}

// evictLocked drops expired sessions before a new one is created, then
// frees a slot by longest-idle order when the registry is still at cap.
// Callers hold s.mu.
func (s *Sessions) evictLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.entries, id)
		}
	}
	for len(s.entries) >= s.cap {
		var oldestID string
		var oldest time.Time
		for id, e := range s.entries {
			if oldestID == "" || e.lastSeen.Before(oldest) {
				oldestID, oldest = id, e.lastSeen
			}
		}
		delete(s.entries, oldestID)
	}
}

// respondRequest is the JSON body of POST /v1/respond.
type respondRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Role      string `json:"role,omitempty"`
	Rating    int    `json:"rating,omitempty"`
}

// respondResponse is the JSON reply.
type respondResponse struct {
	SessionID           string `json:"session_id"`
	Reply               string `json:"reply"`
	Stage               string `json:"stage"`
	RatingVisible       bool   `json:"rating_visible"`
	RatingSubmitVisible bool   `json:"rating_submit_visible"`
}

// NewHandler returns the HTTP handler for the conversation surface.
func NewHandler(responder Responder, sessions *Sessions) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Post("/v1/respond", handleRespond(responder, sessions))
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleRespond(responder Responder, sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" && req.Rating == 0 {
			httpError(w, http.StatusBadRequest, "message or rating is required")
			return
		}
		if req.Rating < 0 || req.Rating > 5 {
			httpError(w, http.StatusBadRequest, "rating must be between 1 and 5")
			return
		}

		entry, id := sessions.acquire(req.SessionID, ParseRole(req.Role))
		defer entry.mu.Unlock()

		reply := responder.Respond(r.Context(), entry.sess, conversation.Input{
			Message: req.Message,
			Rating:  req.Rating,
		})

		slog.Debug("respond handled",
			"session", id,
			"stage", reply.Stage.String(),
			"rating_visible", reply.RatingVisible,
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(respondResponse{
			SessionID:           id,
			Reply:               reply.Text,
			Stage:               reply.Stage.String(),
			RatingVisible:       reply.RatingVisible,
			RatingSubmitVisible: reply.RatingSubmitVisible,
		})
	}
}

// ParseRole maps the wire role string to a retrieval role. Unknown values
// mean no role-based score adjustment.
func ParseRole(role string) retrieval.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "resident", "житель", "собственник":
		return retrieval.RoleResident
	case "executor", "уо", "исполнитель":
		return retrieval.RoleExecutor
	default:
		return retrieval.RoleMixed
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": fmt.Sprintf(format, args...)},
	})
}
