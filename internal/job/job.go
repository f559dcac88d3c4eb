package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadscout/engine/internal/lead"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	case StatusPending, StatusRunning:
		return false
	default:
		return false
	}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st := Status(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown job status %q", raw)
	}
	*s = st
	return nil
}

const (
	MaxLocationLen = 100
	MaxKeywordLen  = 100
	MaxListNameLen = 60
	MinTargetCount = 1
	MaxTargetCount = 10000
)

// Request holds the parameters a job is started with.
type Request struct {
	Location    string `json:"location"`
	Keyword     string `json:"keyword"`
	TargetCount int    `json:"target_count"`
	ListName    string `json:"list_name,omitempty"`
}

// Normalize trims surrounding whitespace from the free-text fields.
func (r Request) Normalize() Request {
	r.Location = strings.TrimSpace(r.Location)
	r.Keyword = strings.TrimSpace(r.Keyword)
	r.ListName = strings.TrimSpace(r.ListName)
	return r
}

// Validate returns the first problem found as a *ValidationError.
func (r Request) Validate() error {
	switch {
	case r.Location == "":
		return &ValidationError{Field: "location", Reason: "is required"}
	case len(r.Location) > MaxLocationLen:
		return &ValidationError{Field: "location", Reason: fmt.Sprintf("must be at most %d characters", MaxLocationLen)}
	case r.Keyword == "":
		return &ValidationError{Field: "keyword", Reason: "is required"}
	case len(r.Keyword) > MaxKeywordLen:
		return &ValidationError{Field: "keyword", Reason: fmt.Sprintf("must be at most %d characters", MaxKeywordLen)}
	case len(r.ListName) > MaxListNameLen:
		return listNameTooLong()
	case r.TargetCount < MinTargetCount || r.TargetCount > MaxTargetCount:
		return &ValidationError{Field: "target_count", Reason: fmt.Sprintf("must be between %d and %d", MinTargetCount, MaxTargetCount)}
	}
	return nil
}

// validateListName checks a list name given on its own, where it is required.
func validateListName(name string) error {
	if name == "" {
		return &ValidationError{Field: "list_name", Reason: "is required"}
	}
	if len(name) > MaxListNameLen {
		return listNameTooLong()
	}
	return nil
}

func listNameTooLong() error {
	return &ValidationError{Field: "list_name", Reason: fmt.Sprintf("must be at most %d characters", MaxListNameLen)}
}

type Job struct {
	ID          string        `json:"id"`
	Location    string        `json:"location"`
	Keyword     string        `json:"keyword"`
	TargetCount int           `json:"target_count"`
	ListName    string        `json:"list_name,omitempty"`
	Status      Status        `json:"status"`
	Progress    int           `json:"progress"`
	Records     []lead.Record `json:"records"`
	Found       int           `json:"found"`
	WithEmail   int           `json:"with_email"`
	WithPhone   int           `json:"with_phone"`
	AvgRating   float64       `json:"avg_rating"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func New(req Request, now time.Time) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Location:    req.Location,
		Keyword:     req.Keyword,
		TargetCount: req.TargetCount,
		ListName:    req.ListName,
		Status:      StatusPending,
		Records:     []lead.Record{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) Request() Request {
	return Request{Location: j.Location, Keyword: j.Keyword, TargetCount: j.TargetCount, ListName: j.ListName}
}

// recomputeStats derives the aggregates from the full record set.
func (j *Job) recomputeStats() {
	j.Found = len(j.Records)
	j.WithEmail, j.WithPhone = 0, 0
	sum := 0.0
	for _, r := range j.Records {
		if r.HasEmail() {
			j.WithEmail++
		}
		if r.HasPhone() {
			j.WithPhone++
		}
		sum += r.Rating
	}
	j.AvgRating = 0
	if j.Found > 0 {
		j.AvgRating = float64(int(sum/float64(j.Found)*100+0.5)) / 100
	}
}

func (j *Job) finish(status Status, now time.Time) {
	j.Status = status
	j.EndedAt = &now
	j.UpdatedAt = now
	if status == StatusCompleted {
		j.CompletedAt = &now
	}
}

// Clone returns a deep copy. Records are immutable values, so copying the
// slice is enough.
func (j *Job) Clone() *Job {
	c := *j
	c.Records = append([]lead.Record(nil), j.Records...)
	if c.Records == nil {
		c.Records = []lead.Record{}
	}
	return &c
}

// Summary returns a copy without records.
func (j *Job) Summary() *Job {
	c := *j
	c.Records = nil
	return &c
}
