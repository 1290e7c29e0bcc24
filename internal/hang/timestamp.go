package hang

import (
	"errors"
	"strings"
	"time"
)

// ErrNoTimestamp means the log output carried no parsable timestamp.
var ErrNoTimestamp = errors.New("no log timestamp")

// logTimeLayout matches Docker's timestamp prefix. The literal Z rejects
// zone offsets; fractional seconds are accepted when present.
const logTimeLayout = "2006-01-02T15:04:05Z"

// ParseLogTimestamp extracts the timestamp that prefixes the last non-empty
// line of text, as written by the engine when timestamps are requested.
// Only YYYY-MM-DDTHH:MM:SS[.fraction]Z is accepted.
func ParseLogTimestamp(text string) (time.Time, error) {
	line := lastLine(text)
	if line == "" {
		return time.Time{}, ErrNoTimestamp
	}
	field, _, _ := strings.Cut(line, " ")
	if !validTimestampShape(field) {
		return time.Time{}, ErrNoTimestamp
	}
	ts, err := time.Parse(logTimeLayout, field)
	if err != nil {
		return time.Time{}, ErrNoTimestamp
	}
	return ts, nil
}

func lastLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// validTimestampShape checks the fixed-width date-time and the optional
// all-digit fraction. time.Parse alone would also accept a comma separator.
func validTimestampShape(s string) bool {
	const base = len("2006-01-02T15:04:05")
	if len(s) < base+1 || s[len(s)-1] != 'Z' {
		return false
	}
	for i := 0; i < base; i++ {
		c := s[i]
		switch i {
		case 4, 7:
			if c != '-' {
				return false
			}
		case 10:
			if c != 'T' {
				return false
			}
		case 13, 16:
			if c != ':' {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	frac := s[base : len(s)-1]
	if frac == "" {
		return true
	}
	if frac[0] != '.' || len(frac) == 1 {
		return false
	}
	for i := 1; i < len(frac); i++ {
		if frac[i] < '0' || frac[i] > '9' {
			return false
		}
	}
	return true
}
