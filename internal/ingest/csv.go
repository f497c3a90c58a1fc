package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ignite/sendgrid-insights/internal/analytics"
)

// Field is a column of a SendGrid activity export.
type Field string

const (
	FieldEmail     Field = "email"
	FieldEvent     Field = "event"
	FieldTimestamp Field = "timestamp"
	FieldSMTPID    Field = "smtp_id"
	FieldCategory  Field = "category"
	FieldAccountID Field = "email_account_id"
	FieldEventID   Field = "sg_event_id"
)

// requiredFields must all be present for a header row to be usable.
var requiredFields = []Field{FieldEventID, FieldEmail, FieldEvent, FieldTimestamp}

// headerAliases maps case-folded header names to fields.
var headerAliases = map[string]Field{
	"email":            FieldEmail,
	"event":            FieldEvent,
	"timestamp":        FieldTimestamp,
	"smtp-id":          FieldSMTPID,
	"smtp_id":          FieldSMTPID,
	"smtp id":          FieldSMTPID,
	"category":         FieldCategory,
	"categories":       FieldCategory,
	"email account id": FieldAccountID,
	"email_account_id": FieldAccountID,
	"sg_event_id":      FieldEventID,
	"sg-event-id":      FieldEventID,
	"sg event id":      FieldEventID,
}

// maxHeaderScan bounds how many leading rows are searched for the header.
const maxHeaderScan = 10

// ColumnMapping maps fields to column indexes.
type ColumnMapping map[Field]int

func (m ColumnMapping) value(row []string, f Field) string {
	i, ok := m[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// MapHeader recognises export columns. Header names are matched after
// Unicode case folding; the first column wins when a field repeats. It
// returns nil when no column is recognised.
func MapHeader(header []string) ColumnMapping {
	fold := cases.Fold()
	m := make(ColumnMapping)
	for i, name := range header {
		key := fold.String(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		f, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := m[f]; !dup {
			m[f] = i
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Missing lists the required fields absent from m.
func (m ColumnMapping) Missing() []Field {
	var out []Field
	for _, f := range requiredFields {
		if _, ok := m[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// ParseStats summarises one export.
type ParseStats struct {
	Rows      int `json:"rows"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// ParseCSV reads a SendGrid activity export. Rows before the header are
// ignored, as are rows without an event id. Malformed CSV lines are
// counted and skipped.
func ParseCSV(r io.Reader) ([]analytics.RawEvent, ParseStats, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		stats   ParseStats
		mapping ColumnMapping
	)
	for i := 0; mapping == nil; i++ {
		if i >= maxHeaderScan {
			return nil, stats, ErrNoHeader
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, stats, ErrNoHeader
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read header: %w", err)
		}
		mapping = MapHeader(row)
	}
	if missing := mapping.Missing(); len(missing) > 0 {
		return nil, stats, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}

	raws := make([]analytics.RawEvent, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Malformed++
				continue
			}
			return raws, stats, fmt.Errorf("read row: %w", err)
		}
		stats.Rows++

		raw := analytics.RawEvent{
			ID:        mapping.value(row, FieldEventID),
			SMTPID:    mapping.value(row, FieldSMTPID),
			Email:     mapping.value(row, FieldEmail),
			Event:     mapping.value(row, FieldEvent),
			Timestamp: mapping.value(row, FieldTimestamp),
			Category:  mapping.value(row, FieldCategory),
			AccountID: mapping.value(row, FieldAccountID),
		}
		if raw.ID == "" {
			stats.Skipped++
			continue
		}
		raws = append(raws, raw)
	}
	return raws, stats, nil
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
