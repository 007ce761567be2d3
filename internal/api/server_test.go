package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/upravdom/upravdom/internal/conversation"
	"github.com/upravdom/upravdom/internal/retrieval"
)

// echoResponder replies with a fixed text and moves the session forward.
type echoResponder struct {
	mu    sync.Mutex
	calls []conversation.Input
}

func (e *echoResponder) Respond(ctx context.Context, sess *conversation.Session, in conversation.Input) conversation.Reply {
	e.mu.Lock()
	e.calls = append(e.calls, in)
	e.mu.Unlock()
	sess.Stage = conversation.AwaitingRating
	return conversation.Reply{
		Text:                "ответ",
		Stage:               sess.Stage,
		RatingVisible:       true,
		RatingSubmitVisible: true,
	}
}

func postRespond(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/respond", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(&echoResponder{}, NewSessions())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRespond_AssignsSessionID(t *testing.T) {
	h := NewHandler(&echoResponder{}, NewSessions())
	rec := postRespond(t, h, `{"message": "вопрос про тариф"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp respondResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Fatal("session_id must be assigned")
	}
	if resp.Reply != "ответ" || resp.Stage != "awaiting_rating" {
		t.Fatalf("resp = %+v", resp)
	}
	if !resp.RatingVisible || !resp.RatingSubmitVisible {
		t.Fatal("rating visibility flags lost in transport")
	}
}

func TestRespond_ReusesSession(t *testing.T) {
	responder := &echoResponder{}
	sessions := NewSessions()
	h := NewHandler(responder, sessions)

	rec := postRespond(t, h, `{"message": "первый"}`)
	var first respondResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}

	rec = postRespond(t, h, `{"session_id": "`+first.SessionID+`", "message": "второй"}`)
	var second respondResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("session id changed: %s -> %s", first.SessionID, second.SessionID)
	}
	if len(responder.calls) != 2 {
		t.Fatalf("responder calls = %d, want 2", len(responder.calls))
	}
}

func TestRespond_RatingOnlyBody(t *testing.T) {
	h := NewHandler(&echoResponder{}, NewSessions())
	rec := postRespond(t, h, `{"rating": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRespond_Validation(t *testing.T) {
	h := NewHandler(&echoResponder{}, NewSessions())
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty body fields", `{"message": "  "}`},
		{"rating out of range", `{"message": "вопрос", "rating": 9}`},
		{"negative rating", `{"message": "вопрос", "rating": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRespond(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if _, ok := resp["error"]; !ok {
				t.Fatal("error body missing error field")
			}
		})
	}
}

func TestSessions_EvictsIdle(t *testing.T) {
	clock := time.Now()
	s := NewSessions()
	s.now = func() time.Time { return clock }

	stale, id := s.acquire("", retrieval.RoleMixed)
	stale.mu.Unlock()

	// Past the TTL, creating any new session sweeps the stale one out.
	clock = clock.Add(sessionIdleTTL + time.Minute)
	fresh, _ := s.acquire("", retrieval.RoleMixed)
	fresh.mu.Unlock()

	s.mu.Lock()
	_, kept := s.entries[id]
	n := len(s.entries)
	s.mu.Unlock()
	if kept {
		t.Fatal("idle session must be evicted")
	}
	if n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
}

func TestSessions_CapEvictsLongestIdle(t *testing.T) {
	clock := time.Now()
	s := NewSessions()
	s.cap = 3
	s.now = func() time.Time { return clock }

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		clock = clock.Add(time.Second)
		e, _ := s.acquire(id, retrieval.RoleMixed)
		e.mu.Unlock()
	}

	// "a" is the longest idle; the fourth session pushes it out.
	clock = clock.Add(time.Second)
	e, _ := s.acquire("d", retrieval.RoleMixed)
	e.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries["a"]; ok {
		t.Fatal("longest-idle session must be evicted at cap")
	}
	for _, id := range []string{"b", "c", "d"} {
		if _, ok := s.entries[id]; !ok {
			t.Fatalf("session %q must survive", id)
		}
	}
}

func TestSessions_TouchRefreshesIdle(t *testing.T) {
	clock := time.Now()
	s := NewSessions()
	s.now = func() time.Time { return clock }

	e, id := s.acquire("keep", retrieval.RoleMixed)
	e.mu.Unlock()

	// Touched just before expiry, the session survives the next sweep.
	clock = clock.Add(sessionIdleTTL - time.Minute)
	e, _ = s.acquire(id, retrieval.RoleMixed)
	e.mu.Unlock()

	clock = clock.Add(sessionIdleTTL - time.Minute)
	e, _ = s.acquire("", retrieval.RoleMixed)
	e.mu.Unlock()

	s.mu.Lock()
	_, kept := s.entries[id]
	s.mu.Unlock()
	if !kept {
		t.Fatal("recently touched session must not be evicted")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want retrieval.Role
	}{
		{"resident", retrieval.RoleResident},
		{"житель", retrieval.RoleResident},
		{"Собственник", retrieval.RoleResident},
		{"executor", retrieval.RoleExecutor},
		{"УО", retrieval.RoleExecutor},
		{"исполнитель", retrieval.RoleExecutor},
		{"", retrieval.RoleMixed},
		{"что-то", retrieval.RoleMixed},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
