package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateAtom is the parsed form of a date-modified: filter: a comparison
// against mtime (unix seconds), or a closed-open [Lo, Hi) interval for
// CmpRange — the form every symbolic interval in spec.md §4.9 resolves to.
type DateAtom struct {
	Cmp Cmp
	Lo  int64
	Hi  int64
}

// Match reports whether mtime (unix seconds) satisfies the atom.
func (a DateAtom) Match(mtime int64) bool {
	switch a.Cmp {
	case CmpEQ:
		return mtime == a.Lo
	case CmpLT:
		return mtime < a.Lo
	case CmpLE:
		return mtime <= a.Lo
	case CmpGT:
		return mtime > a.Lo
	case CmpGE:
		return mtime >= a.Lo
	case CmpRange:
		return mtime >= a.Lo && mtime < a.Hi
	}
	return false
}

// ParseDate parses the date-modified: argument grammar against now:
// an ISO-8601 date/time prefix, or a symbolic interval (today, yesterday,
// thishour, "past N years", "last N weeks"/"last two weeks", "N minutes",
// "N months", …). now is injected so parsing is deterministic in tests.
func ParseDate(s string, now time.Time) (DateAtom, error) {
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)

	switch low {
	case "today":
		return dayRange(now, 0)
	case "yesterday":
		return dayRange(now, -1)
	case "thishour":
		start := now.Truncate(time.Hour)
		return DateAtom{Cmp: CmpRange, Lo: start.Unix(), Hi: start.Add(time.Hour).Unix()}, nil
	}

	if rest, ok := cutPrefix(low, "past "); ok {
		return parsePastOrLast(rest, now)
	}
	if rest, ok := cutPrefix(low, "last "); ok {
		return parsePastOrLast(rest, now)
	}

	if n, unit, ok := parseLeadingNumberWord(low); ok {
		d, err := unitDuration(unit, n)
		if err == nil {
			return DateAtom{Cmp: CmpGE, Lo: now.Add(-d).Unix()}, nil
		}
	}

	cmp := CmpEQ
	rest := s
	switch {
	case strings.HasPrefix(s, "<="):
		cmp, rest = CmpLE, s[2:]
	case strings.HasPrefix(s, ">="):
		cmp, rest = CmpGE, s[2:]
	case strings.HasPrefix(s, "<"):
		cmp, rest = CmpLT, s[1:]
	case strings.HasPrefix(s, ">"):
		cmp, rest = CmpGT, s[1:]
	}
	t, precision, err := parseISOPrefix(strings.TrimSpace(rest))
	if err != nil {
		return DateAtom{}, err
	}
	if cmp == CmpEQ {
		return DateAtom{Cmp: CmpRange, Lo: t.Unix(), Hi: t.Add(precision).Unix()}, nil
	}
	return DateAtom{Cmp: cmp, Lo: t.Unix()}, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// parsePastOrLast handles "N years"/"two weeks"/etc following "past "/"last ".
func parsePastOrLast(rest string, now time.Time) (DateAtom, error) {
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return DateAtom{}, fmt.Errorf("query: malformed date interval %q", rest)
	}
	n, err := wordToNumber(fields[0])
	if err != nil {
		return DateAtom{}, err
	}
	d, err := unitDuration(fields[1], n)
	if err != nil {
		return DateAtom{}, err
	}
	return DateAtom{Cmp: CmpGE, Lo: now.Add(-d).Unix()}, nil
}

func wordToNumber(w string) (int, error) {
	switch w {
	case "one":
		return 1, nil
	case "two":
		return 2, nil
	case "three":
		return 3, nil
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 0, fmt.Errorf("query: expected a number, got %q", w)
	}
	return n, nil
}

// parseLeadingNumberWord parses "N minutes"/"N months"/etc as a two-token
// phrase with no "past"/"last" prefix.
func parseLeadingNumberWord(s string) (int, string, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}
	return n, fields[1], true
}

func unitDuration(unit string, n int) (time.Duration, error) {
	unit = strings.TrimSuffix(unit, "s")
	switch unit {
	case "minute":
		return time.Duration(n) * time.Minute, nil
	case "hour":
		return time.Duration(n) * time.Hour, nil
	case "day":
		return time.Duration(n) * 24 * time.Hour, nil
	case "week":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "month":
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	case "year":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("query: unknown date unit %q", unit)
}

func dayRange(now time.Time, offsetDays int) (DateAtom, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day = day.AddDate(0, 0, offsetDays)
	return DateAtom{Cmp: CmpRange, Lo: day.Unix(), Hi: day.AddDate(0, 0, 1).Unix()}, nil
}

// parseISOPrefix accepts an ISO-8601 date or date-time prefix and returns
// the parsed time plus the duration spanned by the precision given (a bare
// date matches the whole day, a date+hour matches the hour, etc).
func parseISOPrefix(s string) (time.Time, time.Duration, error) {
	layouts := []struct {
		layout string
		span   time.Duration
	}{
		{"2006-01-02T15:04:05", time.Second},
		{"2006-01-02T15:04", time.Minute},
		{"2006-01-02T15", time.Hour},
		{"2006-01-02", 24 * time.Hour},
		{"2006-01", 0}, // month, handled specially
		{"2006", 0},    // year, handled specially
	}
	for _, l := range layouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			if l.span != 0 {
				return t, l.span, nil
			}
			if len(s) == 4 {
				return t, t.AddDate(1, 0, 0).Sub(t), nil
			}
			return t, t.AddDate(0, 1, 0).Sub(t), nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("query: unparseable date %q", s)
}
