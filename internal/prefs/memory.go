package prefs

import (
	"context"
	"slices"
	"sync"
)

const subscriberBuffer = 8

// MemoryStore keeps preferences in process. It is used when Redis is not
// configured.
type MemoryStore struct {
	mu     sync.Mutex
	prefs  map[string]Preferences
	subs   map[string]map[int]chan Preferences
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs: make(map[string]Preferences),
		subs:  make(map[string]map[int]chan Preferences),
	}
}

func (m *MemoryStore) Get(_ context.Context, visitor string) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[visitor]
	if !ok {
		return Default(), nil
	}
	p.Favorites = slices.Clone(p.Favorites)
	return normalize(p), nil
}

func (m *MemoryStore) Set(_ context.Context, visitor string, p Preferences) error {
	p = normalize(p)
	p.Favorites = slices.Clone(p.Favorites)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs[visitor] = p
	for _, ch := range m.subs[visitor] {
		select {
		case ch <- p:
		default:
			// slow subscriber; it will see the next update
		}
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, visitor string) (<-chan Preferences, func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan Preferences, subscriberBuffer)
	if m.subs[visitor] == nil {
		m.subs[visitor] = make(map[int]chan Preferences)
	}
	m.subs[visitor][id] = ch
	m.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			m.mu.Lock()
			delete(m.subs[visitor], id)
			if len(m.subs[visitor]) == 0 {
				delete(m.subs, visitor)
			}
			m.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}
