package session

import (
	"fmt"
	"strconv"
	"time"

	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

// sessionToHash converts a Session into the flat map stored with HSET. Times are unix millis.
func sessionToHash(s domsession.Session) map[string]string {
	return map[string]string{
		"id":          s.ID(),
		"user_a":      s.UserA(),
		"user_b":      s.UserB(),
		"created_at":  strconv.FormatInt(s.CreatedAt().UnixMilli(), 10),
		"expires_at":  strconv.FormatInt(s.ExpiresAt().UnixMilli(), 10),
		"closed_by_a": boolFlag(s.ClosedByA()),
		"closed_by_b": boolFlag(s.ClosedByB()),
		"status":      string(s.Status()),
		"annotation":  s.Annotation(),
	}
}

// sessionFromHash hydrates a Session from an HGETALL result map.
func sessionFromHash(m map[string]string) (domsession.Session, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("invalid created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("invalid expires_at: %w", err)
	}
	return domsession.Reconstruct(
		m["id"], m["user_a"], m["user_b"],
		time.UnixMilli(createdAt), time.UnixMilli(expiresAt),
		m["closed_by_a"] == "1", m["closed_by_b"] == "1",
		domsession.Status(m["status"]), m["annotation"],
	), nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
