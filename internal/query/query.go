package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leadscout/engine/internal/lead"
)

type Filter string

const (
	FilterAll        Filter = "all"
	FilterHasEmail   Filter = "has_email"
	FilterHasPhone   Filter = "has_phone"
	FilterHighRating Filter = "high_rating"
)

const HighRatingThreshold = 4.0

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterHasEmail, FilterHasPhone, FilterHighRating:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter: %q", s)
	}
}

func (f Filter) match(r lead.Record) bool {
	switch f {
	case FilterHasEmail:
		return r.HasEmail()
	case FilterHasPhone:
		return r.HasPhone()
	case FilterHighRating:
		return r.Rating >= HighRatingThreshold
	case FilterAll, "":
		return true
	default:
		return false
	}
}

// SortKey picks the column to order by. The zero value keeps generation order.
type SortKey string

const (
	SortNone    SortKey = ""
	SortName    SortKey = "name"
	SortRating  SortKey = "rating"
	SortReviews SortKey = "reviews"
)

func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortName, SortRating, SortReviews:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key: %q", s)
	}
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

type Query struct {
	Search   string  `json:"search,omitempty"`
	Filter   Filter  `json:"filter,omitempty"`
	Sort     SortKey `json:"sort,omitempty"`
	Desc     bool    `json:"desc,omitempty"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

type Result struct {
	Items      []lead.Record `json:"items"`
	TotalCount int           `json:"total_count"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// View returns the searched, filtered and sorted records without paginating.
// The input slice is not modified.
func View(records []lead.Record, q Query) []lead.Record {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]lead.Record, 0, len(records))
	for _, r := range records {
		if needle != "" && !matchesSearch(r, needle) {
			continue
		}
		if !q.Filter.match(r) {
			continue
		}
		out = append(out, r)
	}

	if less := lessFunc(q.Sort); less != nil {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return less(out[j], out[i])
			}
			return less(out[i], out[j])
		})
	}
	return out
}

// Apply runs search, filter and sort, then cuts out the requested page.
// Pages are 1-based; a page past the end is empty.
func Apply(records []lead.Record, q Query) Result {
	view := View(records, q)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	total := len(view)
	res := Result{
		Items:      []lead.Record{},
		TotalCount: total,
		TotalPages: (total + size - 1) / size,
		Page:       page,
		PageSize:   size,
	}

	start := (page - 1) * size
	if start >= total {
		return res
	}
	end := start + size
	if end > total {
		end = total
	}
	res.Items = view[start:end]
	return res
}

func matchesSearch(r lead.Record, needle string) bool {
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Address), needle) ||
		strings.Contains(strings.ToLower(r.Email), needle)
}

func lessFunc(key SortKey) func(a, b lead.Record) bool {
	switch key {
	case SortName:
		return func(a, b lead.Record) bool { return a.Name < b.Name }
	case SortRating:
		return func(a, b lead.Record) bool { return a.Rating < b.Rating }
	case SortReviews:
		return func(a, b lead.Record) bool { return a.Reviews < b.Reviews }
	case SortNone:
		return nil
	default:
		return nil
	}
}
