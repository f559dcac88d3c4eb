package query

import (
	"testing"

	"github.com/leadscout/engine/internal/lead"
)

func sample() []lead.Record {
	return []lead.Record{
		{ID: "1", Name: "Copper Kettle Cafe", Phone: "1", Email: "hi@copper.com", Rating: 4.5, Reviews: 120, Address: "1 Main St, Austin, TX"},
		{ID: "2", Name: "Atlas Moving", Phone: "2", Rating: 3.6, Reviews: 40, Address: "2 Oak Ave, Austin, TX"},
		{ID: "3", Name: "Brightside Dental", Phone: "3", Email: "x@bright.com", Rating: 4.0, Reviews: 900, Address: "3 Elm St, Dallas, TX"},
		{ID: "4", Name: "Evergreen Landscaping", Phone: "", Rating: 4.9, Reviews: 5, Address: "4 Pine St, Austin, TX"},
		{ID: "5", Name: "Metro Auto", Phone: "5", Rating: 3.9, Reviews: 900, Address: "5 Lake Rd, Dallas, TX"},
	}
}

func ids(rs []lead.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestView(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all in generation order", Query{}, []string{"1", "2", "3", "4", "5"}},
		{"search address", Query{Search: "dallas"}, []string{"3", "5"}},
		{"search email", Query{Search: "COPPER.com"}, []string{"1"}},
		{"has email", Query{Filter: FilterHasEmail}, []string{"1", "3"}},
		{"has phone", Query{Filter: FilterHasPhone}, []string{"1", "2", "3", "5"}},
		{"high rating includes 4.0", Query{Filter: FilterHighRating}, []string{"1", "3", "4"}},
		{"sort name", Query{Sort: SortName}, []string{"2", "3", "1", "4", "5"}},
		{"sort rating desc", Query{Sort: SortRating, Desc: true}, []string{"4", "1", "3", "5", "2"}},
		{"sort reviews is stable", Query{Sort: SortReviews}, []string{"4", "2", "1", "3", "5"}},
		{"search then filter then sort", Query{Search: "tx", Filter: FilterHighRating, Sort: SortReviews, Desc: true}, []string{"3", "1", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(View(sample(), tt.q))
			if !equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestView_DoesNotReorderInput(t *testing.T) {
	in := sample()
	View(in, Query{Sort: SortName, Desc: true})
	if got := ids(in); !equal(got, []string{"1", "2", "3", "4", "5"}) {
		t.Errorf("input was reordered: %v", got)
	}
}

func TestApply_PagesReassembleTheView(t *testing.T) {
	g := lead.NewGenerator(11)
	var records []lead.Record
	for i := 0; i < 137; i++ {
		r, _ := g.Generate("job", i, "Austin, TX", "")
		records = append(records, r)
	}

	filters := []Filter{FilterAll, FilterHasEmail, FilterHasPhone, FilterHighRating}
	sorts := []SortKey{SortNone, SortName, SortRating, SortReviews}

	for _, f := range filters {
		for _, s := range sorts {
			for _, desc := range []bool{false, true} {
				for _, size := range []int{1, 7, 25, 200} {
					q := Query{Filter: f, Sort: s, Desc: desc, PageSize: size}
					view := View(records, q)

					var all []lead.Record
					seen := map[string]bool{}
					first := Apply(records, q)
					if first.TotalCount != len(view) {
						t.Fatalf("%v/%v/%v/%d: total %d, view %d", f, s, desc, size, first.TotalCount, len(view))
					}
					for p := 1; p <= first.TotalPages; p++ {
						q.Page = p
						res := Apply(records, q)
						for _, r := range res.Items {
							if seen[r.ID] {
								t.Fatalf("duplicate %s on page %d", r.ID, p)
							}
							seen[r.ID] = true
						}
						all = append(all, res.Items...)
					}
					if !equal(ids(all), ids(view)) {
						t.Fatalf("%v/%v/%v/%d: pages do not reproduce the view", f, s, desc, size)
					}
				}
			}
		}
	}
}

func TestApply_Bounds(t *testing.T) {
	res := Apply(sample(), Query{Page: 9, PageSize: 2})
	if len(res.Items) != 0 {
		t.Errorf("expected empty page, got %d items", len(res.Items))
	}
	if res.TotalCount != 5 || res.TotalPages != 3 {
		t.Errorf("unexpected totals: %+v", res)
	}

	res = Apply(sample(), Query{Page: 0, PageSize: 0})
	if res.Page != 1 || res.PageSize != DefaultPageSize || len(res.Items) != 5 {
		t.Errorf("unexpected defaults: page=%d size=%d items=%d", res.Page, res.PageSize, len(res.Items))
	}

	res = Apply(nil, Query{})
	if res.TotalPages != 0 || res.Items == nil {
		t.Errorf("expected zero pages and non-nil items, got %+v", res)
	}
}

func TestParse(t *testing.T) {
	if f, err := ParseFilter(""); err != nil || f != FilterAll {
		t.Errorf("expected all, got %v %v", f, err)
	}
	if _, err := ParseFilter("bogus"); err == nil {
		t.Error("expected error for unknown filter")
	}
	if s, err := ParseSort("Rating"); err != nil || s != SortRating {
		t.Errorf("expected rating, got %v %v", s, err)
	}
	if _, err := ParseSort("email"); err == nil {
		t.Error("expected error for unknown sort")
	}
	if sc, err := ParseScope(""); err != nil || sc != ScopeAll {
		t.Errorf("expected all, got %v %v", sc, err)
	}
}
