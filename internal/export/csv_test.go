package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/leadscout/engine/internal/lead"
)

func TestWrite_QuotesAndEscapes(t *testing.T) {
	records := []lead.Record{
		{ID: "1", Name: `Joe's "Best" Pizza, Inc.`, Phone: "(512) 555-0100", Email: "contact@joes.com", Rating: 4.5, Reviews: 321, Address: "12 Main St, Austin, TX", Website: "https://www.joes.com"},
		{ID: "2", Name: "Plain Name", Phone: "(512) 555-0101", Rating: 4, Reviews: 5, Address: "1 Oak Ave"},
		{ID: "3", Name: "Line\nBreak", Phone: "(512) 555-0102", Rating: 3.7, Reviews: 2000, Address: `Suite "B"`},
	}

	out, err := Bytes(records)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	text := string(out)

	if !strings.HasPrefix(text, "Business Name,Phone,Email,Rating,Reviews,Address,Website\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(text, "\n", 2)[0])
	}
	if !strings.Contains(text, `"Joe's ""Best"" Pizza, Inc."`) {
		t.Errorf("expected escaped name in output:\n%s", text)
	}
	if !strings.Contains(text, "\nPlain Name,(512) 555-0101,,4.0,5,1 Oak Ave,\n") {
		t.Errorf("expected unquoted plain row with one-decimal rating:\n%s", text)
	}

	rows, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for i, r := range records {
		row := rows[i+1]
		if row[0] != r.Name || row[1] != r.Phone || row[2] != r.Email || row[5] != r.Address || row[6] != r.Website {
			t.Errorf("row %d did not round-trip: %q", i, row)
		}
	}
	if rows[1][3] != "4.5" || rows[1][4] != "321" {
		t.Errorf("unexpected numeric fields: %q", rows[1])
	}
}

func TestWrite_GeneratedRecordsRoundTrip(t *testing.T) {
	g := lead.NewGenerator(5)
	var records []lead.Record
	for i := 0; i < 60; i++ {
		r, _ := g.Generate("job", i, `Springfield, "Twin" Falls, ID`, "")
		records = append(records, r)
	}

	out, err := Bytes(records)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i, r := range records {
		if rows[i+1][5] != r.Address {
			t.Fatalf("address %d: expected %q, got %q", i, r.Address, rows[i+1][5])
		}
	}
}

func TestWrite_Empty(t *testing.T) {
	out, err := Bytes(nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(out) != "Business Name,Phone,Email,Rating,Reviews,Address,Website\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestFilename(t *testing.T) {
	day := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		list, location, keyword string
		want                    string
	}{
		{"Q4 Prospects", "Austin, TX", "plumbers", "Q4_Prospects_Austin_TX_plumbers_2026-10-15.csv"},
		{"", "São Paulo", "café & bar", "S_o_Paulo_caf_bar_2026-10-15.csv"},
		{"../etc", "", "", "etc_2026-10-15.csv"},
		{"", "", "", "leads_2026-10-15.csv"},
	}

	for _, tt := range tests {
		if got := Filename(tt.list, tt.location, tt.keyword, day); got != tt.want {
			t.Errorf("Filename(%q, %q, %q): expected %q, got %q", tt.list, tt.location, tt.keyword, tt.want, got)
		}
	}
}
