package query

import (
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
}

func TestParseDateToday(t *testing.T) {
	now := fixedNow()
	atom, err := ParseDate("today", now)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	startOfDay := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC).Unix()
	if atom.Cmp != CmpRange || atom.Lo != startOfDay {
		t.Fatalf("today = %+v, want Lo=%d", atom, startOfDay)
	}
	if !atom.Match(now.Unix()) {
		t.Fatal("today should match now")
	}
	if atom.Match(now.AddDate(0, 0, -1).Unix()) {
		t.Fatal("today should not match yesterday")
	}
}

func TestParseDatePastNUnits(t *testing.T) {
	now := fixedNow()
	atom, err := ParseDate("past 3 days", now)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if atom.Cmp != CmpGE {
		t.Fatalf("past 3 days Cmp = %v, want CmpGE", atom.Cmp)
	}
	want := now.Add(-3 * 24 * time.Hour).Unix()
	if atom.Lo != want {
		t.Fatalf("past 3 days Lo = %d, want %d", atom.Lo, want)
	}
}

func TestParseDateLastTwoWeeks(t *testing.T) {
	now := fixedNow()
	atom, err := ParseDate("last two weeks", now)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := now.Add(-2 * 7 * 24 * time.Hour).Unix()
	if atom.Lo != want {
		t.Fatalf("last two weeks Lo = %d, want %d", atom.Lo, want)
	}
}

func TestParseDateISOPrefix(t *testing.T) {
	atom, err := ParseDate("2026-07", fixedNow())
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if atom.Cmp != CmpRange {
		t.Fatalf("ISO month Cmp = %v, want CmpRange", atom.Cmp)
	}
	monthStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Unix()
	if atom.Lo != monthStart {
		t.Fatalf("ISO month Lo = %d, want %d", atom.Lo, monthStart)
	}
}

func TestParseDateComparator(t *testing.T) {
	atom, err := ParseDate(">2026-01-01", fixedNow())
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if atom.Cmp != CmpGT {
		t.Fatalf("Cmp = %v, want CmpGT", atom.Cmp)
	}
}

func TestParseDateUnparseable(t *testing.T) {
	if _, err := ParseDate("not-a-date", fixedNow()); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}
