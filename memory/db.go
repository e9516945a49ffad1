package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentcore/core"
)

// DB stores long-term user memories.
type DB interface {
	// List returns the user's memories in insertion order.
	List(ctx context.Context, userID string) ([]core.UserMemory, error)
	// Upsert inserts or replaces a memory by id.
	Upsert(ctx context.Context, userID string, memory core.UserMemory) error
	// Replace swaps the user's memories for the given list.
	Replace(ctx context.Context, userID string, memories []core.UserMemory) error
	// Search returns up to limit memories containing query.
	Search(ctx context.Context, userID, query string, limit int) ([]core.UserMemory, error)
	// Delete removes one memory.
	Delete(ctx context.Context, userID, id string) error
}

// ErrMemoryNotFound is returned by Delete for unknown ids.
var ErrMemoryNotFound = errors.New("memory not found")

type storedMemory struct {
	seq    int
	memory core.UserMemory
}

// InMemoryDB is a naive process-local DB.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case-insensitive substring matching. Suitable only
// for tests / demos.
type InMemoryDB struct {
	mu    sync.RWMutex
	seq   int
	users map[string]map[string]storedMemory // userID -> memoryID -> stored memory
}

var _ DB = (*InMemoryDB)(nil)

// NewInMemoryDB creates an empty in-memory memory DB.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{users: make(map[string]map[string]storedMemory)}
}

// List implements DB.
func (d *InMemoryDB) List(_ context.Context, userID string) ([]core.UserMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sorted(userID, "", 0), nil
}

// Upsert implements DB.
func (d *InMemoryDB) Upsert(_ context.Context, userID string, memory core.UserMemory) error {
	if memory.ID == "" {
		memory.ID = core.NewID()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.put(userID, memory)
	return nil
}

// Replace implements DB.
func (d *InMemoryDB) Replace(_ context.Context, userID string, memories []core.UserMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, userID)
	for _, mem := range memories {
		if mem.ID == "" {
			mem.ID = core.NewID()
		}
		d.put(userID, mem)
	}
	return nil
}

// Search implements DB. An empty query matches everything; limit <= 0
// returns all matches.
func (d *InMemoryDB) Search(_ context.Context, userID, query string, limit int) ([]core.UserMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sorted(userID, strings.ToLower(query), limit), nil
}

// Delete implements DB.
func (d *InMemoryDB) Delete(_ context.Context, userID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, exists := d.users[userID]
	if !exists {
		return ErrMemoryNotFound
	}
	if _, exists := user[id]; !exists {
		return ErrMemoryNotFound
	}
	delete(user, id)
	return nil
}

func (d *InMemoryDB) put(userID string, memory core.UserMemory) {
	user, exists := d.users[userID]
	if !exists {
		user = make(map[string]storedMemory)
		d.users[userID] = user
	}
	seq := d.seq
	if prev, ok := user[memory.ID]; ok {
		seq = prev.seq
	} else {
		d.seq++
	}
	user[memory.ID] = storedMemory{seq: seq, memory: memory}
}

func (d *InMemoryDB) sorted(userID, query string, limit int) []core.UserMemory {
	user := d.users[userID]
	stored := make([]storedMemory, 0, len(user))
	for _, s := range user {
		if query == "" || strings.Contains(strings.ToLower(s.memory.Memory), query) {
			stored = append(stored, s)
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })
	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}
	out := make([]core.UserMemory, len(stored))
	for i, s := range stored {
		out[i] = s.memory
	}
	return out
}
