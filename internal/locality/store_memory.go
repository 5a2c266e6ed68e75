package locality

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryKey struct {
	t    LocalityType
	name string
}

// MemoryStore is an in-process Store used by tests and import dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[memoryKey]Locality
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[memoryKey]Locality)}
}

func (s *MemoryStore) Upsert(_ context.Context, rec Locality) (Locality, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{t: rec.Type, name: rec.Name}
	if existing, ok := s.rows[k]; ok {
		return existing, false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.rows[k] = rec
	return rec, true, nil
}

func (s *MemoryStore) ListByType(_ context.Context, t LocalityType) ([]Locality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Locality, 0)
	for k, rec := range s.rows {
		if k.t == t {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Search(_ context.Context, t LocalityType, partial string, limit int) ([]string, error) {
	needle := foldName(partial)

	s.mu.RLock()
	names := make([]string, 0)
	for k := range s.rows {
		if k.t == t && strings.Contains(foldName(k.name), needle) {
			names = append(names, k.name)
		}
	}
	s.mu.RUnlock()

	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}
