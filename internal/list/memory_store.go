package list

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	lists map[string]*List
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lists: make(map[string]*List)}
}

func (r *MemoryRepository) Get(ctx context.Context, name string) (*List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return l.clone(), nil
}

func (r *MemoryRepository) Put(ctx context.Context, l *List) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[l.Name] = l.clone()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.lists, name)
	return nil
}

func (r *MemoryRepository) All(ctx context.Context) ([]*List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*List, 0, len(r.lists))
	for _, l := range r.lists {
		out = append(out, l.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
