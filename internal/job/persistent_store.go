package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/leadscout/engine/internal/db"
)

const jobsPrefix = "jobs/"

// stored wraps a job with its insertion sequence so history order survives
// jobs created within the same clock tick.
type stored struct {
	Seq uint64 `json:"seq"`
	Job *Job   `json:"job"`
}

// PersistentStore keeps the job history in badger under jobs/<id>.
type PersistentStore struct {
	mu        sync.Mutex
	dbStore   *db.Store
	namespace string
	cap       int
	seq       uint64
}

func NewPersistentStore(dbStore *db.Store, namespace string, capacity int) (*PersistentStore, error) {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	s := &PersistentStore{dbStore: dbStore, namespace: namespace, cap: capacity}

	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, st := range all {
		if st.Seq > s.seq {
			s.seq = st.Seq
		}
	}
	return s, nil
}

func (s *PersistentStore) key(id string) string {
	return jobsPrefix + id
}

func (s *PersistentStore) put(st stored) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.dbStore.Set(s.namespace, s.key(st.Job.ID), data); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

func (s *PersistentStore) load(id string) (stored, error) {
	data, err := s.dbStore.Get(s.namespace, s.key(id))
	if errors.Is(err, db.ErrNotFound) {
		return stored{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return stored{}, fmt.Errorf("get job: %w", err)
	}
	var st stored
	if err := json.Unmarshal(data, &st); err != nil {
		return stored{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return st, nil
}

// scan returns every stored job, oldest first.
func (s *PersistentStore) scan() ([]stored, error) {
	var all []stored
	err := s.dbStore.Scan(s.namespace, jobsPrefix, func(key string, value []byte) error {
		var st stored
		if err := json.Unmarshal(value, &st); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", key, err)
		}
		all = append(all, st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

func (s *PersistentStore) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(j.ID); err == nil {
		return fmt.Errorf("job already exists: %s", j.ID)
	}
	s.seq++
	return s.put(stored{Seq: s.seq, Job: j})
}

func (s *PersistentStore) Get(id string) (*Job, error) {
	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return st.Job, nil
}

func (s *PersistentStore) Update(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(j.ID)
	if err != nil {
		return err
	}
	st.Job = j
	return s.put(st)
}

func (s *PersistentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(id); err != nil {
		return err
	}
	if err := s.dbStore.Delete(s.namespace, s.key(id)); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *PersistentStore) List(limit int) ([]*Job, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i].Job)
	}
	return out, nil
}

func (s *PersistentStore) Prune() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	excess := len(all) - s.cap
	if excess <= 0 {
		return nil, nil
	}

	var evicted []string
	for _, st := range all {
		if len(evicted) == excess {
			break
		}
		if st.Job.Status.IsTerminal() {
			evicted = append(evicted, st.Job.ID)
		}
	}
	if len(evicted) == 0 {
		return nil, nil
	}

	keys := make([]string, len(evicted))
	for i, id := range evicted {
		keys[i] = s.key(id)
	}
	if err := s.dbStore.DeleteMany(s.namespace, keys); err != nil {
		return nil, fmt.Errorf("evict jobs: %w", err)
	}
	return evicted, nil
}

func (s *PersistentStore) Stats() (Stats, error) {
	all, err := s.scan()
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, e := range all {
		st.count(e.Job.Status)
	}
	return st, nil
}
