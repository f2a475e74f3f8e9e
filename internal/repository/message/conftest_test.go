package message

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	xaddFn       func(ctx context.Context, key string, fields map[string]string) (string, error)
	xrangeFn     func(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error)
	publishFn    func(ctx context.Context, channel string, payload []byte) error
	subscribeFn  func(ctx context.Context, channel string, ready func(), fn func(payload []byte)) error
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setNXFn      func(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	setWithTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn        func(ctx context.Context, key string) error
}

func (m *mockStore) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	if m.xaddFn != nil {
		return m.xaddFn(ctx, key, fields)
	}
	return "1700000000000-0", nil
}

func (m *mockStore) XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error) {
	if m.xrangeFn != nil {
		return m.xrangeFn(ctx, key, start, end, count)
	}
	return nil, nil
}

func (m *mockStore) Publish(ctx context.Context, channel string, payload []byte) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, channel, payload)
	}
	return nil
}

func (m *mockStore) Subscribe(ctx context.Context, channel string, ready func(), fn func(payload []byte)) error {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, channel, ready, fn)
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value, ttl)
	}
	return true, nil
}

func (m *mockStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setWithTTLFn != nil {
		return m.setWithTTLFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
