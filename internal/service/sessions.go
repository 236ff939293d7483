package service

import (
	"sync"

	"swapstyle-service/internal/blobstore"
	"swapstyle-service/internal/docstore"
)

// Sessions owns one Coordinator per authenticated user. Dwell timers are
// process-local state, so the same user must keep getting the same
// Coordinator for the lifetime of the process.
type Sessions struct {
	docs  docstore.Store
	blobs blobstore.Store

	mu     sync.Mutex
	active map[string]*Coordinator
}

func NewSessions(docs docstore.Store, blobs blobstore.Store) *Sessions {
	return &Sessions{
		docs:   docs,
		blobs:  blobs,
		active: map[string]*Coordinator{},
	}
}

// For returns the user's Coordinator, creating it on first use.
func (s *Sessions) For(userID string) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.active[userID]; ok {
		return c
	}
	c := New(s.docs, s.blobs, userID)
	s.active[userID] = c
	return c
}

// Close shuts down every session's timers.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.active {
		c.Close()
		delete(s.active, id)
	}
}
