package model

import (
	"errors"
	"strings"
)

// ErrInvalidEvent is matched by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

// ValidationError lists what is wrong with a manually entered draft.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "malformed "+strings.Join(e.Invalid, ", "))
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

// Validate checks a manually entered draft: title, date and time are
// required, and date and time must parse.
func (d Draft) Validate() error {
	var verr ValidationError

	if strings.TrimSpace(d.Title) == "" {
		verr.Missing = append(verr.Missing, "title")
	}
	switch {
	case strings.TrimSpace(d.Date) == "":
		verr.Missing = append(verr.Missing, "date")
	case !ValidDate(d.Date):
		verr.Invalid = append(verr.Invalid, "date")
	}
	switch {
	case strings.TrimSpace(d.Time) == "":
		verr.Missing = append(verr.Missing, "time")
	case !ValidTime(d.Time):
		verr.Invalid = append(verr.Invalid, "time")
	}

	if len(verr.Missing) == 0 && len(verr.Invalid) == 0 {
		return nil
	}
	return &verr
}
