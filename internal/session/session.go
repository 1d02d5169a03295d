// Package session holds the in-memory conversation state for one chat
// session. History lives for the lifetime of the process and is dropped on
// exit; the index is the only durable state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is a single conversation thread. Safe for concurrent use.
type Session struct {
	// ID uniquely identifies the session for logging and metrics.
	ID string

	mu    sync.Mutex
	turns []rag.Turn
}

// New creates an empty session with a fresh ID.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Append records a turn at the end of the history.
func (s *Session) Append(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, rag.Turn{Role: role, Text: text, At: time.Now()})
}

// History returns a copy of the most recent n turns, oldest first.
// n <= 0 returns the full history.
func (s *Session) History(n int) []rag.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]rag.Turn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
