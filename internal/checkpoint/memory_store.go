package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryStore keeps checkpoints in process memory. It implements the full
// Store contract including leases, but provides no durability across
// restarts; use it for tests and examples.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
	leases      map[string]memoryLease
}

type memoryLease struct {
	owner   string
	expires time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]*Checkpoint),
		leases:      make(map[string]memoryLease),
	}
}

func (m *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *cp
	saved.UpdatedAt = time.Now()
	m.checkpoints[cp.ThreadID] = &saved
	return nil
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, exists := m.checkpoints[threadID]
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "thread %s", threadID)
	}
	loaded := *cp
	return &loaded, nil
}

func (m *MemoryStore) AcquireLease(_ context.Context, threadID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if l, held := m.leases[threadID]; held && l.owner != owner && l.expires.After(now) {
		return false, nil
	}
	m.leases[threadID] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryStore) ReleaseLease(_ context.Context, threadID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, held := m.leases[threadID]; held && l.owner == owner {
		delete(m.leases, threadID)
	}
	return nil
}
