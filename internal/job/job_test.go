package job

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leadscout/engine/internal/lead"
)

func testRequest() Request {
	return Request{Location: "Chicago, IL", Keyword: "pizza", TargetCount: 100}
}

func TestNewJob(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j := New(testRequest(), now)

	if j.ID == "" {
		t.Error("expected job ID")
	}
	if j.Status != StatusPending {
		t.Errorf("expected pending, got %s", j.Status)
	}
	if j.Location != "Chicago, IL" {
		t.Errorf("expected Chicago, IL, got %s", j.Location)
	}
	if !j.CreatedAt.Equal(now) {
		t.Error("expected created_at")
	}
	if j.Records == nil {
		t.Error("expected empty, non-nil records")
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for status, want := range tests {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s: expected terminal=%v, got %v", status, want, got)
		}
	}
}

func TestStatus_RejectsUnknownValue(t *testing.T) {
	var j Job
	err := json.Unmarshal([]byte(`{"id":"x","status":"paused"}`), &j)
	if err == nil || !strings.Contains(err.Error(), "paused") {
		t.Fatalf("expected unknown status error, got %v", err)
	}

	if err := json.Unmarshal([]byte(`{"id":"x","status":"running"}`), &j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != StatusRunning {
		t.Errorf("expected running, got %s", j.Status)
	}
}

func TestRequest_Validate(t *testing.T) {
	long := strings.Repeat("x", 101)
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"valid", testRequest(), ""},
		{"missing location", Request{Keyword: "pizza", TargetCount: 10}, "location"},
		{"long location", Request{Location: long, Keyword: "pizza", TargetCount: 10}, "location"},
		{"missing keyword", Request{Location: "NYC", TargetCount: 10}, "keyword"},
		{"long keyword", Request{Location: "NYC", Keyword: long, TargetCount: 10}, "keyword"},
		{"long list name", Request{Location: "NYC", Keyword: "pizza", TargetCount: 10, ListName: strings.Repeat("l", 61)}, "list_name"},
		{"zero target", Request{Location: "NYC", Keyword: "pizza"}, "target_count"},
		{"huge target", Request{Location: "NYC", Keyword: "pizza", TargetCount: 10001}, "target_count"},
		{"max target", Request{Location: "NYC", Keyword: "pizza", TargetCount: 10000}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestRequest_NormalizeTrims(t *testing.T) {
	r := Request{Location: "  NYC ", Keyword: "\tpizza", ListName: " leads "}.Normalize()
	if r.Location != "NYC" || r.Keyword != "pizza" || r.ListName != "leads" {
		t.Errorf("unexpected normalized request %+v", r)
	}
}

func TestJob_RecomputeStats(t *testing.T) {
	j := New(testRequest(), time.Now())
	j.Records = []lead.Record{
		{ID: "a", Phone: "1", Email: "a@x.com", Rating: 4.0},
		{ID: "b", Phone: "2", Rating: 5.0},
		{ID: "c", Phone: "3", Email: "c@x.com", Rating: 3.5},
	}
	j.recomputeStats()

	if j.Found != 3 || j.WithEmail != 2 || j.WithPhone != 3 {
		t.Errorf("unexpected counts: found=%d email=%d phone=%d", j.Found, j.WithEmail, j.WithPhone)
	}
	if j.AvgRating != 4.17 {
		t.Errorf("expected avg 4.17, got %v", j.AvgRating)
	}

	j.Records = nil
	j.recomputeStats()
	if j.Found != 0 || j.AvgRating != 0 {
		t.Errorf("expected zeroed stats, got found=%d avg=%v", j.Found, j.AvgRating)
	}
}

func TestStore_AddAndGet(t *testing.T) {
	store := NewStore(10)
	j := New(testRequest(), time.Now())

	store.Add(j)
	got, err := store.Get(j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, got.ID)
	}

	got.Progress = 50
	again, _ := store.Get(j.ID)
	if again.Progress != 0 {
		t.Error("store handed out its own copy")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := NewStore(10)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListMostRecentFirst(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	first := New(testRequest(), now)
	second := New(testRequest(), now)
	store.Add(first)
	store.Add(second)

	jobs, _ := store.List(0)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID {
		t.Errorf("expected most recent first")
	}

	jobs, _ = store.List(1)
	if len(jobs) != 1 {
		t.Errorf("expected limit to apply, got %d", len(jobs))
	}
}

func TestStore_PruneKeepsLiveJobs(t *testing.T) {
	store := NewStore(2)
	now := time.Now()

	live := New(testRequest(), now)
	live.Status = StatusRunning
	done1 := New(testRequest(), now)
	done1.Status = StatusCompleted
	done2 := New(testRequest(), now)
	done2.Status = StatusCancelled
	for _, j := range []*Job{live, done1, done2} {
		store.Add(j)
	}

	evicted, _ := store.Prune()
	if len(evicted) != 1 || evicted[0] != done1.ID {
		t.Fatalf("expected oldest terminal job evicted, got %v", evicted)
	}
	if _, err := store.Get(live.ID); err != nil {
		t.Error("live job was evicted")
	}

	extra := New(testRequest(), now)
	extra.Status = StatusPending
	store.Add(extra)
	store.Add(&Job{ID: "live-2", Status: StatusRunning})
	store.Prune()

	st, _ := store.Stats()
	if st.Pending != 1 || st.Running != 2 {
		t.Errorf("live jobs lost during prune: %+v", st)
	}
}
