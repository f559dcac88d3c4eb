package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leadscout/engine/internal/lead"
)

// Selection is a set of record ids chosen by the user. It is independent of any
// query, so it survives search, filter and page changes.
type Selection struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewSelection(ids ...string) *Selection {
	s := &Selection{ids: make(map[string]struct{})}
	s.Add(ids...)
	return s
}

func (s *Selection) Add(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *Selection) Remove(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Toggle flips membership and reports whether id is now selected.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

func (s *Selection) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Scope says which records a bulk operation covers.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeFiltered Scope = "filtered"
	ScopeSelected Scope = "selected"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeFiltered, ScopeSelected:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scope: %q", s)
	}
}

// Subset picks the records for scope. Filtered keeps the query's order and
// ignores pagination; selected keeps generation order.
func Subset(records []lead.Record, q Query, sel *Selection, scope Scope) []lead.Record {
	switch scope {
	case ScopeFiltered:
		return View(records, q)
	case ScopeSelected:
		out := []lead.Record{}
		if sel == nil {
			return out
		}
		for _, r := range records {
			if sel.Has(r.ID) {
				out = append(out, r)
			}
		}
		return out
	case ScopeAll:
		return append([]lead.Record(nil), records...)
	default:
		return append([]lead.Record(nil), records...)
	}
}
