package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

// --- UpsertProfile ---

func TestUpsertProfile_Flagged(t *testing.T) {
	repo, ms := newTestRepo(t)

	var hashKey string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		hashKey = key
		if fields["flagged"] != "true" || fields["summary"] != "likes go" {
			t.Errorf("unexpected fields: %v", fields)
		}
		return nil
	}
	var added []string
	ms.saddFn = func(_ context.Context, key string, members ...string) error {
		if key != "rendezvous:flagged" {
			t.Errorf("unexpected set key: %s", key)
		}
		added = members
		return nil
	}
	ms.sremFn = func(_ context.Context, _ string, _ ...string) error {
		t.Error("SREM must not be called for a flagged profile")
		return nil
	}

	p := domprofile.Reconstruct("u1", "likes go", "Ann", true)
	if err := repo.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashKey != "rendezvous:profile:u1" {
		t.Errorf("unexpected key: %s", hashKey)
	}
	if len(added) != 1 || added[0] != "u1" {
		t.Errorf("unexpected SADD members: %v", added)
	}
}

func TestUpsertProfile_Unflagged(t *testing.T) {
	repo, ms := newTestRepo(t)

	var removed bool
	ms.sremFn = func(_ context.Context, _ string, members ...string) error {
		removed = len(members) == 1 && members[0] == "u1"
		return nil
	}

	p := domprofile.Reconstruct("u1", "", "", false)
	if err := repo.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed {
		t.Error("expected SREM of u1")
	}
}

func TestUpsertProfile_HSetError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error { return errors.New("down") }

	if err := repo.UpsertProfile(context.Background(), domprofile.Reconstruct("u1", "", "", false)); err == nil {
		t.Fatal("expected error")
	}
}

// --- GetProfile / GetProfiles ---

func TestGetProfile(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"summary": "hiking", "display_name": "Bo", "flagged": "false"}, nil
	}

	p, err := repo.GetProfile(context.Background(), "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "u2" || p.Summary() != "hiking" || p.DisplayName() != "Bo" || p.Flagged() {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetProfile(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetProfiles_SkipsMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 || keys[0] != "rendezvous:profile:a" {
			t.Errorf("unexpected keys: %v", keys)
		}
		return []map[string]string{{"summary": "x"}, {}}, nil
	}

	got, err := repo.GetProfiles(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got["a"].Summary() != "x" {
		t.Fatalf("unexpected profiles: %v", got)
	}
}

func TestGetProfiles_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		t.Error("no round trip expected for empty input")
		return nil, nil
	}

	got, err := repo.GetProfiles(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("unexpected result: %v %v", got, err)
	}
}

// --- FlaggedIDs ---

func TestFlaggedIDs(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.smembersFn = func(_ context.Context, key string) ([]string, error) {
		if key != "rendezvous:flagged" {
			t.Errorf("unexpected key: %s", key)
		}
		return []string{"bad"}, nil
	}

	ids, err := repo.FlaggedIDs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "bad" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

// --- Embeddings ---

func TestUpsertEmbedding_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)

	stored := map[string]map[string]string{}
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		stored[key] = fields
		return nil
	}
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		return stored[key], nil
	}

	e := domprofile.ReconstructEmbedding("u1", "general", []float32{0.5, -1, 2}, []string{"go", "music"})
	if err := repo.UpsertEmbedding(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, ok := stored["rendezvous:emb:general:u1"]
	if !ok {
		t.Fatalf("expected embedding key, got %v", stored)
	}
	if fields["labels"] != "go,music" || fields["user_id"] != "u1" {
		t.Errorf("unexpected fields: %v", fields)
	}

	got, err := repo.GetEmbedding(context.Background(), "general", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dim() != 3 || got.Vector()[1] != -1 || len(got.Labels()) != 2 {
		t.Fatalf("unexpected embedding: %+v", got)
	}
}

func TestGetEmbedding_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetEmbedding(context.Background(), "general", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEmbedding_CorruptVector(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"user_id": "u1", "vector": "abc"}, nil
	}

	if _, err := repo.GetEmbedding(context.Background(), "general", "u1"); err == nil {
		t.Fatal("expected error for corrupt vector")
	}
}

func TestUpsertEmbeddings_Pipeline(t *testing.T) {
	repo, ms := newTestRepo(t)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}

	batch := []domprofile.Embedding{
		domprofile.ReconstructEmbedding("a", "general", []float32{1}, nil),
		domprofile.ReconstructEmbedding("b", "general", []float32{2}, nil),
	}
	if err := repo.UpsertEmbeddings(context.Background(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[1].Key != "rendezvous:emb:general:b" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
