package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/domain/search"
	"github.com/kailas-cloud/rendezvous/internal/domain/search/filter"
)

// --- Mocks ---

type mockRepo struct {
	knnResults []search.Candidate
	knnErr     error
	scan       []domprofile.Embedding
	scanErr    error

	knnCalled  bool
	scanCalled bool
	lastK      int
	lastFilter filter.Expression
}

func (m *mockRepo) SearchKNN(
	_ context.Context, _ string, _ []float32, f filter.Expression, k int,
) ([]search.Candidate, error) {
	m.knnCalled = true
	m.lastK = k
	m.lastFilter = f
	return m.knnResults, m.knnErr
}

func (m *mockRepo) ScanEmbeddings(_ context.Context, _ string) ([]domprofile.Embedding, error) {
	m.scanCalled = true
	return m.scan, m.scanErr
}

type mockContexts struct {
	mc  dommc.Context
	err error
}

func (m *mockContexts) Get(_ context.Context, _ string) (dommc.Context, error) {
	return m.mc, m.err
}

func generalContext() *mockContexts {
	return &mockContexts{mc: dommc.Reconstruct("general", 2, 0)}
}

func newRanker(repo *mockRepo, ctxs *mockContexts) *Ranker {
	return New(repo, ctxs, 0, zap.NewNop())
}

func ids(cands []search.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.UserID
	}
	return out
}

func assertIDs(t *testing.T, got []search.Candidate, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

// --- Tests ---

func TestRank_PrimaryExcludesRequester(t *testing.T) {
	repo := &mockRepo{knnResults: []search.Candidate{
		{UserID: "U1", Score: 1.0},
		{UserID: "U2", Score: 0.91},
		{UserID: "U3", Score: 0.85},
	}}
	r := newRanker(repo, generalContext())

	got, err := r.Rank(context.Background(), Request{
		Context: "general", Vector: []float32{1, 0}, Excluded: []string{"U1"}, TopN: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "U2", "U3")
	if repo.scanCalled {
		t.Error("fallback should not run when primary succeeds")
	}
	if repo.lastK != 3 {
		t.Errorf("expected k=3, got %d", repo.lastK)
	}
	mustNot := repo.lastFilter.MustNot()
	if len(mustNot) != 1 || mustNot[0].Key() != fieldUserID {
		t.Errorf("expected user_id must_not condition, got %+v", mustNot)
	}
}

func TestRank_LabelsBecomeShouldCondition(t *testing.T) {
	repo := &mockRepo{}
	r := newRanker(repo, generalContext())

	_, err := r.Rank(context.Background(), Request{
		Context: "general", Vector: []float32{1, 0}, Labels: []string{"go", "rust"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	should := repo.lastFilter.Should()
	if len(should) != 1 || should[0].Key() != fieldLabels || len(should[0].Values()) != 2 {
		t.Errorf("unexpected should conditions: %+v", should)
	}
}

func TestRank_LargeExclusionSetPostFiltered(t *testing.T) {
	excluded := make([]string, filter.MaxValuesPerCondition+1)
	for i := range excluded {
		excluded[i] = fmt.Sprintf("x%d", i)
	}
	repo := &mockRepo{knnResults: []search.Candidate{
		{UserID: "x0", Score: 0.99},
		{UserID: "U2", Score: 0.9},
	}}
	r := newRanker(repo, generalContext())

	got, err := r.Rank(context.Background(), Request{
		Context: "general", Vector: []float32{1, 0}, Excluded: excluded, TopN: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "U2")
	if len(repo.lastFilter.MustNot()) != 0 {
		t.Error("oversized exclusion set should not be pushed into the index filter")
	}
	if repo.lastK != 2+len(excluded) {
		t.Errorf("expected k=%d, got %d", 2+len(excluded), repo.lastK)
	}
}

func TestRank_FallbackOnPrimaryError(t *testing.T) {
	repo := &mockRepo{
		knnErr: errors.New("index missing"),
		scan: []domprofile.Embedding{
			domprofile.ReconstructEmbedding("U3", "general", []float32{0.6, 0.8}, nil),
			domprofile.ReconstructEmbedding("U1", "general", []float32{1, 0}, nil),
			domprofile.ReconstructEmbedding("U2", "general", []float32{0.9, 0.1}, nil),
			domprofile.ReconstructEmbedding("U9", "general", []float32{1, 0, 0}, nil),
		},
	}
	r := newRanker(repo, generalContext())

	got, err := r.Rank(context.Background(), Request{
		Context: "general", Vector: []float32{1, 0}, Excluded: []string{"U1"}, TopN: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.scanCalled {
		t.Fatal("expected fallback scan")
	}
	// U9 has the wrong dimension and is skipped.
	assertIDs(t, got, "U2", "U3")
	if got[0].Score <= got[1].Score {
		t.Errorf("expected descending scores, got %v", got)
	}
}

func TestRank_FallbackTiesOrderedByUserID(t *testing.T) {
	repo := &mockRepo{
		knnErr: errors.New("down"),
		scan: []domprofile.Embedding{
			domprofile.ReconstructEmbedding("b", "general", []float32{1, 0}, nil),
			domprofile.ReconstructEmbedding("a", "general", []float32{2, 0}, nil),
			domprofile.ReconstructEmbedding("z", "general", []float32{0, 0}, nil),
		},
	}
	r := newRanker(repo, generalContext())

	got, err := r.Rank(context.Background(), Request{Context: "general", Vector: []float32{1, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "a", "b", "z")
	if got[2].Score != 0 {
		t.Errorf("zero vector should score 0, got %v", got[2].Score)
	}
}

func TestRank_FallbackAppliesLabels(t *testing.T) {
	repo := &mockRepo{
		knnErr: errors.New("down"),
		scan: []domprofile.Embedding{
			domprofile.ReconstructEmbedding("a", "general", []float32{1, 0}, []string{"go"}),
			domprofile.ReconstructEmbedding("b", "general", []float32{1, 0}, []string{"java"}),
		},
	}
	r := newRanker(repo, generalContext())

	got, err := r.Rank(context.Background(), Request{
		Context: "general", Vector: []float32{1, 0}, Labels: []string{"go"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "a")
}

func TestRank_BothPathsFail(t *testing.T) {
	repo := &mockRepo{knnErr: errors.New("down"), scanErr: errors.New("also down")}
	r := newRanker(repo, generalContext())

	_, err := r.Rank(context.Background(), Request{Context: "general", Vector: []float32{1, 0}})
	if !errors.Is(err, domain.ErrMatchingUnavailable) {
		t.Fatalf("expected ErrMatchingUnavailable, got %v", err)
	}
}

func TestRank_DimensionMismatch(t *testing.T) {
	repo := &mockRepo{}
	r := newRanker(repo, generalContext())

	_, err := r.Rank(context.Background(), Request{Context: "general", Vector: []float32{1, 0, 0}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	var dm *domain.DimMismatchError
	if !errors.As(err, &dm) || dm.Expected != 2 || dm.Actual != 3 {
		t.Errorf("unexpected mismatch detail: %v", err)
	}
	if repo.knnCalled || repo.scanCalled {
		t.Error("no search should run on dimension mismatch")
	}
}

func TestRank_ContextErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", domain.ErrContextNotFound, domain.ErrContextNotFound},
		{"store down", errors.New("conn refused"), domain.ErrMatchingUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRanker(&mockRepo{}, &mockContexts{err: tt.err})
			_, err := r.Rank(context.Background(), Request{Context: "general", Vector: []float32{1, 0}})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRank_CanceledContextSkipsFallback(t *testing.T) {
	repo := &mockRepo{knnErr: context.Canceled}
	r := newRanker(repo, generalContext())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Rank(ctx, Request{Context: "general", Vector: []float32{1, 0}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if repo.scanCalled {
		t.Error("fallback should not run after cancellation")
	}
}

func TestClampTopN(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultTopN},
		{-3, 1},
		{1, 1},
		{7, 7},
		{20, 20},
		{100, MaxTopN},
	}
	for _, tt := range tests {
		if got := ClampTopN(tt.in); got != tt.want {
			t.Errorf("ClampTopN(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
