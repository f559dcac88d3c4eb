package job

// JobStore defines the interface for job history storage (both in-memory and
// persistent). Implementations hand out copies, never their own values.
type JobStore interface {
	Add(j *Job) error
	Get(id string) (*Job, error)
	Update(j *Job) error
	Delete(id string) error
	// List returns up to limit jobs, most recent first. limit <= 0 means all.
	List(limit int) ([]*Job, error)
	// Prune evicts the oldest terminal jobs while the store holds more than
	// its cap, and returns the evicted ids. Live jobs are never evicted.
	Prune() ([]string, error)
	Stats() (Stats, error)
}

type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

func (s *Stats) count(status Status) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusRunning:
		s.Running++
	case StatusCompleted:
		s.Completed++
	case StatusFailed:
		s.Failed++
	case StatusCancelled:
		s.Cancelled++
	}
}

const DefaultHistoryCap = 50
