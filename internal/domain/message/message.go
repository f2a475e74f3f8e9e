// Package message models the immutable records of a session's message log
// and the cursor used to read it incrementally.
package message

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
)

// MaxContentLength bounds message content in runes.
const MaxContentLength = 4000

// Message is an immutable record. ID is the log position and orders messages
// within a session: by creation time, then by sequence.
type Message struct {
	ID        string
	SessionID string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// NormalizeContent trims content and rejects empty or oversized text.
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return "", fmt.Errorf("%w: content too long (max %d)", domain.ErrInvalidSchema, MaxContentLength)
	}
	return content, nil
}

var idRegex = regexp.MustCompile(`^(\d+)-(\d+)$`)

// MaxSeqPerMilli is the number of log entries per millisecond that get distinct
// creation times. Entry n of a millisecond is stamped n microseconds into it.
const MaxSeqPerMilli = 1000

// IDTime extracts the creation time encoded in a log id ("<unix ms>-<seq>").
// Entries sharing a millisecond get strictly increasing times, one microsecond apart.
func IDTime(id string) (time.Time, error) {
	ms, seq, err := parseID(id)
	if err != nil {
		return time.Time{}, err
	}
	seq = min(seq, MaxSeqPerMilli-1)
	return time.UnixMilli(ms).Add(time.Duration(seq) * time.Microsecond).UTC(), nil
}

func parseID(id string) (ms, seq int64, err error) {
	m := idRegex.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, id)
	}
	ms, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, id)
	}
	seq, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, id)
	}
	return ms, seq, nil
}

// CompareIDs orders two log ids: negative when a precedes b, zero when equal.
// Ids that do not parse sort before valid ones, then lexically.
func CompareIDs(a, b string) int {
	ma, mb := idRegex.FindStringSubmatch(a), idRegex.FindStringSubmatch(b)
	switch {
	case ma == nil && mb == nil:
		return strings.Compare(a, b)
	case ma == nil:
		return -1
	case mb == nil:
		return 1
	}
	for i := 1; i <= 2; i++ {
		x, _ := strconv.ParseUint(ma[i], 10, 64)
		y, _ := strconv.ParseUint(mb[i], 10, 64)
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Cursor marks a position in a session log. Reads return messages strictly after it.
// The zero Cursor reads from the beginning.
type Cursor struct {
	afterID string
	at      time.Time
	isTime  bool
}

// ParseCursor accepts an empty string, a message id, or an RFC3339 timestamp.
// A timestamp selects messages created strictly after it.
func ParseCursor(raw string) (Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cursor{}, nil
	}
	if idRegex.MatchString(raw) {
		return Cursor{afterID: raw}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: expected message id or RFC3339 timestamp, got %q", domain.ErrInvalidCursor, raw)
	}
	return Cursor{at: ts.UTC(), isTime: true}, nil
}

// AfterID returns a cursor positioned after the given message id.
func AfterID(id string) Cursor { return Cursor{afterID: id} }

// IsZero reports whether the cursor reads from the beginning.
func (c Cursor) IsZero() bool { return c.afterID == "" && !c.isTime }

// Start renders the cursor as an XRANGE start bound.
// A timestamp maps back to the last id whose creation time is not after it.
func (c Cursor) Start() string {
	switch {
	case c.afterID != "":
		return "(" + c.afterID
	case c.isTime:
		ms := c.at.UnixMilli()
		seq := c.at.Sub(time.UnixMilli(ms)) / time.Microsecond
		if seq >= MaxSeqPerMilli-1 {
			// The last microsecond slot also holds any overflow entries of the millisecond.
			return strconv.FormatInt(ms+1, 10) + "-0"
		}
		return "(" + strconv.FormatInt(ms, 10) + "-" + strconv.FormatInt(int64(seq), 10)
	default:
		return "-"
	}
}

// String returns the cursor in the form ParseCursor accepts.
func (c Cursor) String() string {
	switch {
	case c.afterID != "":
		return c.afterID
	case c.isTime:
		return c.at.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Page is one pull result. Next is the cursor to pass on the following pull;
// it equals the request cursor when the page is empty.
type Page struct {
	Messages []Message
	Next     Cursor
	HasMore  bool
}

// EventType enumerates push events.
type EventType string

// Push event types.
const (
	EventMessage      EventType = "message"
	EventSessionEnded EventType = "session_ended"
)

// Event is a best-effort push notification. Delivery is at most once.
type Event struct {
	Type      EventType
	SessionID string
	Message   *Message
	At        time.Time
}
