package annotation

import (
	"context"
	"sync"

	"github.com/kailas-cloud/rendezvous/internal/domain"
)

type mockAnnotator struct {
	mu     sync.Mutex
	result domain.AnnotationResult
	err    error
	block  bool
	calls  int
	last   domain.AnnotationRequest
}

func (m *mockAnnotator) Annotate(ctx context.Context, req domain.AnnotationRequest) (domain.AnnotationResult, error) {
	m.mu.Lock()
	m.calls++
	m.last = req
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return domain.AnnotationResult{}, ctx.Err()
	}
	return m.result, m.err
}

type mockBudget struct {
	checkErr error
	recorded int64
}

func (m *mockBudget) Check(_ context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)           { m.recorded += tokens }
func (m *mockBudget) RemainingDaily() int64         { return -1 }
func (m *mockBudget) RemainingMonthly() int64       { return -1 }
