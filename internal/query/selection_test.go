package query

import "testing"

func TestSelection_SurvivesQueryChanges(t *testing.T) {
	sel := NewSelection("2", "4")
	records := sample()

	// paging through a filtered view does not touch the selection
	Apply(records, Query{Filter: FilterHasEmail, Page: 2, PageSize: 1})
	if sel.Len() != 2 {
		t.Fatalf("expected 2 selected, got %d", sel.Len())
	}

	got := ids(Subset(records, Query{Filter: FilterHasEmail}, sel, ScopeSelected))
	if !equal(got, []string{"2", "4"}) {
		t.Errorf("expected selected records in generation order, got %v", got)
	}
}

func TestSelection_Toggle(t *testing.T) {
	sel := NewSelection()
	if !sel.Toggle("a") {
		t.Error("expected a to become selected")
	}
	if sel.Toggle("a") {
		t.Error("expected a to become unselected")
	}
	sel.Add("c", "b")
	if got := sel.IDs(); !equal(got, []string{"b", "c"}) {
		t.Errorf("expected sorted ids, got %v", got)
	}
	sel.Remove("b")
	sel.Clear()
	if sel.Len() != 0 {
		t.Errorf("expected empty selection, got %d", sel.Len())
	}
}

func TestSubset(t *testing.T) {
	records := sample()
	q := Query{Filter: FilterHighRating, Sort: SortRating, Desc: true, Page: 2, PageSize: 1}

	if got := Subset(records, q, nil, ScopeAll); len(got) != 5 {
		t.Errorf("expected all 5 records, got %d", len(got))
	}
	if got := ids(Subset(records, q, nil, ScopeFiltered)); !equal(got, []string{"4", "1", "3"}) {
		t.Errorf("expected full filtered view, got %v", got)
	}
	if got := Subset(records, q, nil, ScopeSelected); len(got) != 0 {
		t.Errorf("expected nothing without a selection, got %d", len(got))
	}
}
