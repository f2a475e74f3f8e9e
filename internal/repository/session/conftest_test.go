package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/db"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

var testNow = time.UnixMilli(1700000000000)

// mockStore is an in-memory store. Fn fields override single operations.
type mockStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	kv     map[string]string
	zsets  map[string]map[string]float64

	setNXFn func(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	hsetFn  func(ctx context.Context, key string, fields map[string]string) error
	zaddErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		hashes: map[string]map[string]string{},
		kv:     map[string]string{},
		zsets:  map[string]map[string]float64{},
	}
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		if err := m.hsetFn(ctx, key, fields); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = m.HGetAll(ctx, k)
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	delete(m.kv, key)
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(v), nil
}

func (m *mockStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = string(value)
	return true, nil
}

func (m *mockStore) DelIfEquals(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[key] != string(value) {
		return false, nil
	}
	delete(m.kv, key)
	return true, nil
}

func (m *mockStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zaddErr != nil {
		return m.zaddErr
	}
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *mockStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.zsets[key]))
	for member := range m.zsets[key] {
		members = append(members, member)
	}
	z := m.zsets[key]
	sort.Slice(members, func(i, j int) bool { return z[members[i]] > z[members[j]] })
	if start >= int64(len(members)) {
		return nil, nil
	}
	if stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	return members[start : stop+1], nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms), ms
}

func newSession(t *testing.T, id, a, b string, now time.Time) domsession.Session {
	t.Helper()
	s, err := domsession.New(id, a, b, now, domsession.DefaultTTL, "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}
