package submission

import (
	"context"
	"sync"

	"analytics-intake/internal/domain"
)

// UpdateFunc receives a private copy of the current state (nil when none is
// stored) and returns the state to store, or nil to remove it. Stores may call
// it more than once for a single Update.
type UpdateFunc func(current *domain.ConversationState) *domain.ConversationState

// Store holds conversation states. Update calls for the same conversation id
// are applied one at a time; different ids do not block each other.
type Store interface {
	Update(ctx context.Context, conversationID string, fn UpdateFunc) error
}

// MemoryStore is an in-process Store with one lock per conversation.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu    sync.Mutex
	refs  int
	state *domain.ConversationState
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Update(ctx context.Context, conversationID string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.acquire(conversationID)
	defer s.release(conversationID, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	next := fn(e.state.Clone())
	if next != nil {
		next.ConversationID = conversationID
	}
	e.state = next
	return nil
}

// Get returns a copy of the stored state.
func (s *MemoryStore) Get(conversationID string) (*domain.ConversationState, bool) {
	e := s.acquire(conversationID)
	defer s.release(conversationID, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), e.state != nil
}

// Len returns the number of conversations with a stored state or a pending update.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) acquire(id string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &memoryEntry{}
		s.entries[id] = e
	}
	e.refs++
	return e
}

// release drops the entry once nobody holds it and it has no state.
// e.state is only read when refs reaches zero, so no other goroutine holds e.mu.
func (s *MemoryStore) release(id string, e *memoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.state == nil {
		delete(s.entries, id)
	}
}
