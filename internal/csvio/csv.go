// Package csvio moves events in and out of CSV files.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"evcal/internal/model"
)

// ExportHeader is the fixed header row written by Export.
var ExportHeader = []string{"Title", "Date", "Time", "Category", "Recurrence"}

// Result is the outcome of an import. Rejected rows are only counted.
type Result struct {
	Events   []model.Event
	Accepted int
	Rejected int
}

// Import reads a CSV document whose first row names the columns. Column
// names are matched case-insensitively, so files written by Export import
// again. A row is kept when title is non-empty, date is a real
// YYYY-MM-DD date and time is a 24-hour H:MM/HH:MM value; category
// defaults to other and recurrence to none. A well-formed UUID in an
// optional id column is kept as the event id.
func Import(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{Events: []model.Event{}}, nil
		}
		return Result{}, fmt.Errorf("csv import: read header: %w", err)
	}
	cols := columnIndex(header)

	res := Result{Events: make([]model.Event, 0)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && isSyntaxError(perr.Err) {
				res.Rejected++
				continue
			}
			return res, fmt.Errorf("csv import: %w", err)
		}
		if blank(rec) {
			continue
		}

		ev, ok := rowToEvent(cols, rec)
		if !ok {
			res.Rejected++
			continue
		}
		res.Events = append(res.Events, ev)
		res.Accepted++
	}
	return res, nil
}

func rowToEvent(cols map[string]int, rec []string) (model.Event, bool) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	ev := model.Event{
		Title:      field("title"),
		Date:       field("date"),
		Time:       field("time"),
		Category:   model.Category(field("category")),
		Recurrence: model.Recurrence(field("recurrence")),
	}
	if ev.Title == "" || !model.ValidDate(ev.Date) || !model.ValidTime(ev.Time) {
		return model.Event{}, false
	}
	if ev.Category == "" {
		ev.Category = model.CategoryOther
	}
	if ev.Recurrence == "" {
		ev.Recurrence = model.RecurrenceNone
	}
	if id, ok := model.ParseEventID(field("id")); ok {
		ev.ID = id
	}
	return ev, true
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

type ExportOptions struct {
	// IncludeID appends an ID column.
	IncludeID bool
}

// isSyntaxError reports whether a row failed on its own content rather
// than on the underlying reader.
func isSyntaxError(err error) bool {
	return errors.Is(err, csv.ErrFieldCount) ||
		errors.Is(err, csv.ErrQuote) ||
		errors.Is(err, csv.ErrBareQuote)
}

// Export writes the header and one row per event. Fields are joined with
// commas and never quoted, so a comma inside a title shifts its row.
func Export(w io.Writer, events []model.Event, opts ExportOptions) error {
	header := ExportHeader
	if opts.IncludeID {
		header = append(append([]string(nil), ExportHeader...), "ID")
	}

	rows := make([]string, 0, len(events)+1)
	rows = append(rows, strings.Join(header, ","))
	for _, ev := range events {
		fields := []string{ev.Title, ev.Date, ev.Time, string(ev.Category), string(ev.Recurrence)}
		if opts.IncludeID {
			fields = append(fields, ev.ID.String())
		}
		rows = append(rows, strings.Join(fields, ","))
	}

	if _, err := io.WriteString(w, strings.Join(rows, "\n")); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	return nil
}
