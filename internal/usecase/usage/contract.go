package usage

import domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"

// BudgetReader provides read-only access to the annotation token budget.
type BudgetReader interface {
	Snapshot(period domusage.Period) domusage.Budget
	Provider() string
}
