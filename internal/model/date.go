package model

import (
	"strings"
	"time"
)

// DateLayout is the canonical on-disk form of a Date.
const DateLayout = "2006-01-02"

// legacyUnset is the placeholder the old form wrote for "no completion date".
const legacyUnset = "1900-01-01"

var readLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
}

// Date is a calendar date kept as text (YYYY-MM-DD). The empty Date is unset.
// Values read from disk are kept verbatim even if they do not parse.
type Date string

func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates user input and normalizes it to DateLayout.
// Empty input yields the unset Date.
func ParseDate(field, raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == legacyUnset {
		return "", nil
	}
	t, ok := parseLenient(raw)
	if !ok {
		return "", &FieldError{Field: field, Value: raw, Err: ErrUnparseableDate}
	}
	return NewDate(t), nil
}

func (d Date) IsZero() bool {
	s := strings.TrimSpace(string(d))
	return s == "" || s == legacyUnset
}

// Time parses d. ok is false when d is unset or unparseable.
func (d Date) Time() (time.Time, bool) {
	if d.IsZero() {
		return time.Time{}, false
	}
	return parseLenient(strings.TrimSpace(string(d)))
}

func (d Date) String() string { return string(d) }

// Format renders d with layout, falling back to the raw text.
func (d Date) Format(layout string) string {
	t, ok := d.Time()
	if !ok {
		return string(d)
	}
	return t.Format(layout)
}

func parseLenient(raw string) (time.Time, bool) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
