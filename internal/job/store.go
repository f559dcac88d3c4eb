package job

import (
	"fmt"
	"sync"
)

// Store is the in-memory job history.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // insertion order, oldest first
	cap   int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &Store{
		jobs:  make(map[string]*Job),
		order: make([]string, 0),
		cap:   capacity,
	}
}

func (s *Store) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job already exists: %s", j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	s.order = append(s.order, j.ID)
	return nil
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.Clone(), nil
}

func (s *Store) Update(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.removeLocked(id)
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) List(limit int) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.jobs[s.order[i]].Clone())
	}
	return out, nil
}

func (s *Store) Prune() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for len(s.order) > s.cap {
		victim := ""
		for _, id := range s.order {
			if s.jobs[id].Status.IsTerminal() {
				victim = id
				break
			}
		}
		if victim == "" {
			break
		}
		s.removeLocked(victim)
		evicted = append(evicted, victim)
	}
	return evicted, nil
}

func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, j := range s.jobs {
		st.count(j.Status)
	}
	return st, nil
}
