package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/rendezvous/internal/db"
)

// CreateIndex runs FT.CREATE for a matching context's embeddings.
func (s *Store) CreateIndex(ctx context.Context, ix db.EmbeddingIndex) error {
	if err := ix.Validate(); err != nil {
		return fmt.Errorf("embedding index: %w", err)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(ix.Args()...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if indexReply(err) == db.ErrIndexExists {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. Indexed hashes are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if indexReply(err) == db.ErrIndexNotFound {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists asks FT.INFO; a missing-index reply means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if indexReply(err) == db.ErrIndexNotFound {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// indexReplies maps FT error replies to sentinels. Redis answers
// "Index already exists" / "Unknown index name"; valkey-search answers
// "Index ... already exists" / "Index with name ... not found".
var indexReplies = []struct {
	fragment string
	sentinel error
}{
	{"already exists", db.ErrIndexExists},
	{"unknown index name", db.ErrIndexNotFound},
	{"not found", db.ErrIndexNotFound},
}

// indexReply returns the sentinel for a server error reply, nil for anything else.
func indexReply(err error) error {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return nil
	}
	msg := strings.ToLower(re.Error())
	for _, r := range indexReplies {
		if strings.Contains(msg, r.fragment) {
			return r.sentinel
		}
	}
	return nil
}
