package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leadscout/engine/internal/lead"
)

const ContentType = "text/csv; charset=utf-8"

var Header = []string{"Business Name", "Phone", "Email", "Rating", "Reviews", "Address", "Website"}

// Write serializes records as CSV with a header row. Fields holding a comma,
// a quote or a line break are quoted, with inner quotes doubled.
func Write(w io.Writer, records []lead.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.Phone,
			r.Email,
			strconv.FormatFloat(r.Rating, 'f', 1, 64),
			strconv.Itoa(r.Reviews),
			r.Address,
			r.Website,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func Bytes(records []lead.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Filename builds "<list>_<location>_<keyword>_<date>.csv". Runs of
// non-alphanumeric characters become "_" and empty segments are skipped.
func Filename(listName, location, keyword string, now time.Time) string {
	var parts []string
	for _, s := range []string{listName, location, keyword} {
		if seg := sanitize(s); seg != "" {
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 {
		parts = []string{"leads"}
	}
	return strings.Join(parts, "_") + "_" + now.Format("2006-01-02") + ".csv"
}

func sanitize(s string) string {
	return strings.Trim(unsafeRun.ReplaceAllString(s, "_"), "_")
}
