package rendezvous

import "time"

// ContextInfo describes a matching context.
type ContextInfo struct {
	Name             string
	VectorDimensions int
	CreatedAt        time.Time
}

// Profile is a user's display data and interest summary.
type Profile struct {
	UserID      string
	Summary     string
	DisplayName string
	Flagged     bool
}

// EmbeddingItem is one vector of a batch upsert.
type EmbeddingItem struct {
	UserID string
	Vector []float32
	Labels []string
}

// ItemResult reports the outcome of one batch item.
type ItemResult struct {
	UserID string
	OK     bool
	Err    error
}

// Match is one discovered candidate.
type Match struct {
	UserID      string
	DisplayName string
	Summary     string
	Annotation  string
	Score       float64
}

// SessionStatus is the lifecycle state of a match session.
type SessionStatus string

// SessionStatus constants.
const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session is a match session as seen by one participant.
type Session struct {
	ID            string
	Counterpart   string
	Status        SessionStatus
	Annotation    string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ClosedByMe    bool
	ClosedByOther bool
	IsExpired     bool
	IsEnded       bool
}

// CloseResult reports a close request. Ended is true once both sides have closed.
type CloseResult struct {
	Closed bool
	Ended  bool
}

// Message is one record of a session log.
type Message struct {
	ID        string
	SessionID string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// MessagePage is one pull result.
type MessagePage struct {
	Messages   []Message
	NextCursor string
	HasMore    bool
}
