package txparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CanonicalDate is the layout every normalized date is written in.
const CanonicalDate = "2006-01-02"

var (
	ErrEmptyDate        = errors.New("empty date text")
	ErrUnrecognizedDate = errors.New("unrecognized date format")
)

// dateLayouts are tried in order, the first one that parses wins.
var dateLayouts = []string{
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	CanonicalDate,
}

// NormalizeDate converts a date as displayed on the transactions page into
// YYYY-MM-DD.
//
// Empty input returns ("", ErrEmptyDate). Input that matches none of the
// known layouts returns the trimmed input along with ErrUnrecognizedDate,
// callers keep the raw value and only log the error.
func NormalizeDate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return t.Format(CanonicalDate), nil
	}
	return trimmed, fmt.Errorf("%w: %q", ErrUnrecognizedDate, trimmed)
}
