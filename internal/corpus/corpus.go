// Package corpus holds the immutable collection of pre-chunked legal text
// the assistant answers from. The corpus is loaded once at startup and never
// mutated afterwards, so it is safe to share across concurrent sessions
// without locking.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoData reports an empty corpus. Callers surface it as an explicit
// "no data" reply instead of treating an empty context as success.
var ErrNoData = errors.New("corpus: no data loaded")

// Chunk is a unit of retrievable text with metadata.
type Chunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Tags      []string  `json:"tags,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasTag reports whether the chunk carries the given tag.
func (c *Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store is the read-only chunk collection, ordered as loaded.
type Store struct {
	chunks []Chunk
	byID   map[string]int
}

// Load reads the corpus JSON file (an array of chunks) and validates it.
// A missing or empty file is a startup failure, not a recoverable condition.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}

	return New(chunks)
}

// New builds a Store from the given chunks. Duplicate IDs are rejected.
func New(chunks []Chunk) (*Store, error) {
	if len(chunks) == 0 {
		return nil, ErrNoData
	}

	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("corpus: chunk %d has empty id", i)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("corpus: duplicate chunk id %q", c.ID)
		}
		byID[c.ID] = i
	}

	return &Store{chunks: chunks, byID: byID}, nil
}

// Len returns the number of chunks.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Get returns the chunk with the given id.
func (s *Store) Get(id string) (Chunk, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return s.chunks[i], true
}

// All returns the chunks in corpus order. The returned slice must be treated
// as read-only.
func (s *Store) All() []Chunk {
	return s.chunks
}

// ByTag returns, in corpus order, every chunk tagged with the given tag.
func (s *Store) ByTag(tag string) []Chunk {
	var out []Chunk
	for _, c := range s.chunks {
		if c.HasTag(tag) {
			out = append(out, c)
		}
	}
	return out
}
