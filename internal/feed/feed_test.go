package feed

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestRing_DropsOldestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(Event{RecordID: fmt.Sprint(i)})
	}

	got := r.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, want := range []string{"2", "3", "4"} {
		if got[i].RecordID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].RecordID)
		}
	}
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := NewRing(4)
	r.Push(Event{RecordID: "a"})
	r.Push(Event{RecordID: "b"})

	got := r.Snapshot()
	if len(got) != 2 || got[0].RecordID != "a" || got[1].RecordID != "b" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if NewRing(0).Len() != 0 {
		t.Error("expected empty ring")
	}
}

func TestFeed_ActivityReachesSubscribers(t *testing.T) {
	f := New(10)
	ch := f.Hub().Subscribe()
	defer f.Hub().Unsubscribe(ch)

	f.Activity(Event{JobID: "j1", RecordID: "j1-0", Name: "Acme", HasEmail: true})

	select {
	case msg := <-ch:
		if msg.Type != TypeActivity {
			t.Errorf("expected activity, got %s", msg.Type)
		}
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if e.RecordID != "j1-0" || !e.HasEmail {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestFeed_RecentFiltersByJob(t *testing.T) {
	f := New(10)
	f.Activity(Event{JobID: "a", RecordID: "a-0"})
	f.Activity(Event{JobID: "b", RecordID: "b-0"})
	f.Activity(Event{JobID: "a", RecordID: "a-1"})

	if got := f.Recent(""); len(got) != 3 {
		t.Errorf("expected 3 events, got %d", len(got))
	}
	got := f.Recent("a")
	if len(got) != 2 || got[1].RecordID != "a-1" {
		t.Errorf("unexpected events for a: %+v", got)
	}
}

func TestMessage_ForJob(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{NewMessage(TypeActivity, Event{JobID: "a"}), true},
		{NewMessage(TypeActivity, Event{JobID: "b"}), false},
		{NewMessage(TypeJobUpdated, map[string]string{"id": "a"}), true},
		{NewMessage(TypeJobDeleted, map[string]string{"id": "b"}), false},
		{NewMessage(TypeListUpdated, map[string]string{"name": "L"}), true},
		{NewMessage(TypePing, nil), true},
	}
	for _, tt := range tests {
		if got := tt.msg.ForJob("a"); got != tt.want {
			t.Errorf("%s %s: got %v, want %v", tt.msg.Type, tt.msg.Data, got, tt.want)
		}
	}
	if !NewMessage(TypeActivity, Event{JobID: "b"}).ForJob("") {
		t.Error("empty job id should match everything")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	for i := 0; i < 100; i++ {
		h.Publish(NewMessage(TypePing, nil))
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected full buffer, got %d/%d", len(ch), cap(ch))
	}

	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	if h.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", h.Subscribers())
	}
}
