package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// MemoryStore is a thread-safe in-memory [models.SessionStore].
//
// The map lock is only held to find or create an entry; updates lock the entry alone,
// so flows on different sessions never wait on each other.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	sequence atomic.Int64
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) entry(id string, create bool) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok && create {
		e = &memoryEntry{}
		m.entries[id] = e
	}
	return e
}

// current reports whether e is still the live entry for id. Callers hold e.mu.
func (m *MemoryStore) current(id string, e *memoryEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id] == e
}

func (m *MemoryStore) drop(id string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[id] == e {
		delete(m.entries, id)
	}
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	e := m.entry(id, false)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return e.session.Clone(), nil
}

// Set creates or replaces a session.
func (m *MemoryStore) Set(ctx context.Context, s *models.Session) error {
	_, err := m.Update(ctx, s.ID, func(cur *models.Session) error {
		assign(cur, s)
		return nil
	})
	return err
}

// Update applies fn to a copy of the session and stores the result when fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, id string, fn models.UpdateFunc) (*models.Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	for {
		e := m.entry(id, true)
		e.mu.Lock()
		if !m.current(id, e) {
			// deleted between lookup and lock
			e.mu.Unlock()
			continue
		}

		s := e.session.Clone()
		if s == nil {
			s = models.NewSession(id)
			s.Sequence = int(m.sequence.Add(1))
		}

		if err := fn(s); err != nil {
			if e.session == nil {
				m.drop(id, e)
			}
			e.mu.Unlock()
			return nil, err
		}

		s.ID = id
		s.UpdatedAt = time.Now().UTC()
		e.session = s
		e.mu.Unlock()
		return s.Clone(), nil
	}
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// List returns copies of all sessions ordered by sequence.
func (m *MemoryStore) List(ctx context.Context) ([]*models.Session, error) {
	m.mu.Lock()
	entries := make([]*memoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	sessions := make([]*models.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.session != nil {
			sessions = append(sessions, e.session.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Sequence < sessions[j].Sequence
	})
	return sessions, nil
}
