package gateway

import (
	"slices"
	"sync"

	"github.com/moby/locker"
	"github.com/sandevgo/companion/internal/core"
)

// Sessions owns the in-process chat context of every conversation id.
// An id keeps its entry, even when empty, once a call for it has committed,
// so it is hydrated at most once per process.
type Sessions struct {
	mu       sync.Mutex
	contexts map[string][]core.Message
	limit    int
	locks    *locker.Locker
}

func NewSessions(maxGroups int) *Sessions {
	return &Sessions{
		contexts: make(map[string][]core.Message),
		limit:    maxGroups * 2,
		locks:    locker.New(),
	}
}

// Lock serializes whole calls for one conversation id.
func (s *Sessions) Lock(id string) func() {
	s.locks.Lock(id)
	return func() { _ = s.locks.Unlock(id) }
}

// Hydrate seeds the context of an unseen id from prior and reports whether
// it did so.
func (s *Sessions) Hydrate(id string, prior []core.Message) bool {
	if len(prior) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[id]; ok {
		return false
	}
	s.contexts[id] = s.trim(slices.Clone(prior))
	return true
}

func (s *Sessions) Append(id string, msgs ...core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[id] = s.trim(append(s.contexts[id], msgs...))
}

// Snapshot returns a copy of the context for id and whether id was seen.
func (s *Sessions) Snapshot(id string) ([]core.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.contexts[id]
	return slices.Clone(msgs), ok
}

// Restore puts id back into a state taken by Snapshot.
func (s *Sessions) Restore(id string, msgs []core.Message, seen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !seen {
		delete(s.contexts, id)
		return
	}
	s.contexts[id] = slices.Clone(msgs)
}

// Seen reports whether id has an entry, possibly empty.
func (s *Sessions) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contexts[id]
	return ok
}

func (s *Sessions) Len(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts[id])
}

// Clear empties the context for id. It reports whether anything was removed.
func (s *Sessions) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := len(s.contexts[id]) > 0
	if _, ok := s.contexts[id]; ok {
		s.contexts[id] = nil
	}
	return had
}

func (s *Sessions) trim(msgs []core.Message) []core.Message {
	if s.limit > 0 && len(msgs) > s.limit {
		return slices.Clone(msgs[len(msgs)-s.limit:])
	}
	return msgs
}
