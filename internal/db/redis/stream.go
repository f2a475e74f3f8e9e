package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/rendezvous/internal/db"
)

// XAdd appends an entry with a server-assigned id and returns that id.
// Ids are strictly increasing per stream.
func (s *Store) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("at least one field is required")
	}

	cmd := s.b().Arbitrary("XADD").Keys(key).Args(append([]string{"*"}, fieldPairs(fields)...)...).Build()
	id, err := s.do(ctx, cmd).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// XRange reads entries between start and end (XRANGE syntax, "(" marks an exclusive bound).
// count <= 0 means no limit.
func (s *Store) XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error) {
	args := []string{start, end}
	if count > 0 {
		args = append(args, "COUNT", strconv.FormatInt(count, 10))
	}

	cmd := s.b().Arbitrary("XRANGE").Keys(key).Args(args...).Build()
	raw, err := s.do(ctx, cmd).AsXRange()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXRange, Err: err}
	}

	entries := make([]db.StreamEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, db.StreamEntry{ID: e.ID, Fields: e.FieldValues})
	}
	return entries, nil
}
