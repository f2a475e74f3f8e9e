// Package session models the time-bounded, two-party match session and its
// close/expiry state machine.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

// DefaultTTL is the lifetime of a session absent explicit closing.
const DefaultTTL = 10 * time.Minute

// MaxAnnotationLength bounds the stored annotation.
const MaxAnnotationLength = 200

// Status is the persisted session state. Expiry is never persisted; see IsEnded.
type Status string

// Session states. Transitions only go from active to closed.
const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Session is the match session aggregate (immutable value object).
type Session struct {
	id         string
	userA      string
	userB      string
	createdAt  time.Time
	expiresAt  time.Time
	closedByA  bool
	closedByB  bool
	status     Status
	annotation string
}

// New validates and creates an active session between a and b.
// a is the initiator; lookups use PairKey, which ignores order.
func New(id, a, b string, now time.Time, ttl time.Duration, annotation string) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("%w: session id is required", domain.ErrInvalidSchema)
	}
	if err := profile.ValidateID(a); err != nil {
		return Session{}, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if err := profile.ValidateID(b); err != nil {
		return Session{}, fmt.Errorf("%w: candidate: %w", domain.ErrInvalidSchema, err)
	}
	if a == b {
		return Session{}, domain.ErrSelfMatch
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Session{
		id:         id,
		userA:      a,
		userB:      b,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
		status:     StatusActive,
		annotation: TruncateAnnotation(annotation),
	}, nil
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(
	id, userA, userB string, createdAt, expiresAt time.Time,
	closedByA, closedByB bool, status Status, annotation string,
) Session {
	// Both flags set means closed, whatever the stored status says.
	if closedByA && closedByB {
		status = StatusClosed
	}
	if status == "" {
		status = StatusActive
	}
	return Session{
		id: id, userA: userA, userB: userB,
		createdAt: createdAt, expiresAt: expiresAt,
		closedByA: closedByA, closedByB: closedByB,
		status: status, annotation: annotation,
	}
}

// ID returns the session id.
func (s Session) ID() string { return s.id }

// UserA returns the initiating participant.
func (s Session) UserA() string { return s.userA }

// UserB returns the counterpart chosen at connect time.
func (s Session) UserB() string { return s.userB }

// CreatedAt returns the creation time.
func (s Session) CreatedAt() time.Time { return s.createdAt }

// ExpiresAt returns the expiry time.
func (s Session) ExpiresAt() time.Time { return s.expiresAt }

// ClosedByA reports whether participant A closed the session.
func (s Session) ClosedByA() bool { return s.closedByA }

// ClosedByB reports whether participant B closed the session.
func (s Session) ClosedByB() bool { return s.closedByB }

// Status returns the persisted status.
func (s Session) Status() Status { return s.status }

// Annotation returns the "why you match" text, possibly empty.
func (s Session) Annotation() string { return s.annotation }

// WithAnnotation returns a copy carrying the truncated annotation.
func (s Session) WithAnnotation(annotation string) Session {
	s.annotation = TruncateAnnotation(annotation)
	return s
}

// HasParticipant reports whether userID is one of the two participants.
func (s Session) HasParticipant(userID string) bool {
	return userID != "" && (userID == s.userA || userID == s.userB)
}

// Counterpart returns the other participant for userID.
func (s Session) Counterpart(userID string) (string, bool) {
	switch userID {
	case s.userA:
		return s.userB, true
	case s.userB:
		return s.userA, true
	default:
		return "", false
	}
}

// IsExpired reports whether now is at or past the expiry time.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// IsEnded is the single ended check shared by status reads and message writes:
// closed, or expired at now. Once true it stays true.
func (s Session) IsEnded(now time.Time) bool {
	return s.status == StatusClosed || s.IsExpired(now)
}

// CloseFor sets userID's closed flag and closes the session when both flags are set.
// Closing twice is a no-op.
func (s Session) CloseFor(userID string) (Session, error) {
	switch userID {
	case s.userA:
		s.closedByA = true
	case s.userB:
		s.closedByB = true
	default:
		return Session{}, domain.ErrForbidden
	}
	if s.closedByA && s.closedByB {
		s.status = StatusClosed
	}
	return s, nil
}

// ClosedBy reports the caller's and the counterpart's closed flags.
func (s Session) ClosedBy(userID string) (me, other bool) {
	if userID == s.userA {
		return s.closedByA, s.closedByB
	}
	return s.closedByB, s.closedByA
}

// View is the participant-facing status snapshot computed at read time.
type View struct {
	ID            string
	Counterpart   string
	Status        Status
	Annotation    string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ClosedByMe    bool
	ClosedByOther bool
	IsExpired     bool
	IsEnded       bool
}

// ViewFor computes the snapshot for userID at now.
func (s Session) ViewFor(userID string, now time.Time) View {
	me, other := s.ClosedBy(userID)
	counterpart, _ := s.Counterpart(userID)
	return View{
		ID:            s.id,
		Counterpart:   counterpart,
		Status:        s.status,
		Annotation:    s.annotation,
		CreatedAt:     s.createdAt,
		ExpiresAt:     s.expiresAt,
		ClosedByMe:    me,
		ClosedByOther: other,
		IsExpired:     s.IsExpired(now),
		IsEnded:       s.IsEnded(now),
	}
}

// CloseResult is the outcome of a close action.
type CloseResult struct {
	Closed bool
	Ended  bool
}

// PairKey identifies the unordered pair {a, b}. PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	h := sha256.Sum256([]byte(a + "\x00" + b))
	return hex.EncodeToString(h[:])
}

// TruncateAnnotation cuts s to MaxAnnotationLength runes.
func TruncateAnnotation(s string) string {
	r := []rune(s)
	if len(r) <= MaxAnnotationLength {
		return s
	}
	return string(r[:MaxAnnotationLength])
}
