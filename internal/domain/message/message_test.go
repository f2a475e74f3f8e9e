package message

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
)

func TestNormalizeContent(t *testing.T) {
	got, err := NormalizeContent("  hi there \n")
	if err != nil || got != "hi there" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := NormalizeContent(" \t\n "); !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("blank content: got %v", err)
	}
	if _, err := NormalizeContent(strings.Repeat("x", MaxContentLength+1)); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("long content: got %v", err)
	}
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		start string
	}{
		{"empty", "", "-"},
		{"message id", "1700000000000-3", "(1700000000000-3"},
		{"timestamp", "2023-11-14T22:13:20Z", "(1700000000000-0"},
		{"timestamp with millis", "2023-11-14T22:13:20.250Z", "(1700000000250-0"},
		{"timestamp with sequence", "2023-11-14T22:13:20.250003Z", "(1700000000250-3"},
		{"sub-microsecond rounds down", "2023-11-14T22:13:20.250003900Z", "(1700000000250-3"},
		{"last slot of the millisecond", "2023-11-14T22:13:20.250999Z", "1700000000251-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCursor(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Start() != tt.start {
				t.Errorf("Start() = %q, want %q", c.Start(), tt.start)
			}
		})
	}
}

func TestParseCursor_Invalid(t *testing.T) {
	if _, err := ParseCursor("yesterday"); !errors.Is(err, domain.ErrInvalidCursor) {
		t.Errorf("got %v", err)
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	c := AfterID("5-1")
	again, err := ParseCursor(c.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Start() != c.Start() {
		t.Errorf("round trip changed cursor: %q vs %q", again.Start(), c.Start())
	}
	if !(Cursor{}).IsZero() || c.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestIDTime(t *testing.T) {
	ts, err := IDTime("1700000000123-0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("IDTime = %v", ts)
	}
	if _, err := IDTime("abc"); err == nil {
		t.Error("expected error")
	}
}

func TestIDTime_SameMillisecondIsStrictlyIncreasing(t *testing.T) {
	ids := []string{"1700000000123-0", "1700000000123-1", "1700000000123-2", "1700000000124-0"}
	var prev time.Time
	for i, id := range ids {
		ts, err := IDTime(id)
		if err != nil {
			t.Fatalf("IDTime(%q): %v", id, err)
		}
		if i > 0 && !ts.After(prev) {
			t.Errorf("IDTime(%q) = %v, not after %v", id, ts, prev)
		}
		prev = ts
	}
}

func TestCursor_TimestampOfMessageResumesAfterIt(t *testing.T) {
	// Pulling with a message's own creation time must return the next entry of the
	// same millisecond and nothing at or before it.
	for _, id := range []string{"1700000000123-0", "1700000000123-1", "1700000000123-41"} {
		ts, err := IDTime(id)
		if err != nil {
			t.Fatalf("IDTime(%q): %v", id, err)
		}
		c, err := ParseCursor(ts.Format(time.RFC3339Nano))
		if err != nil {
			t.Fatalf("ParseCursor: %v", err)
		}
		if c.Start() != "("+id {
			t.Errorf("cursor from %q starts at %q, want %q", id, c.Start(), "("+id)
		}
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1700000000000-0", "1700000000000-0", 0},
		{"1700000000000-0", "1700000000000-1", -1},
		{"1700000000000-10", "1700000000000-9", 1},
		{"999-0", "1000-0", -1},
		{"junk", "1-0", -1},
		{"1-0", "junk", 1},
		{"a", "b", -1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
