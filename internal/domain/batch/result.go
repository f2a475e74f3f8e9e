// Package batch holds per-item outcomes of bulk ingest operations.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of ingesting one user's embedding in a batch.
type Result struct {
	userID string
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(userID string) Result { return Result{userID: userID, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(userID string, err error) Result {
	return Result{userID: userID, status: StatusError, err: err}
}

// UserID returns the item's user id.
func (r Result) UserID() string { return r.userID }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summarize counts successes and failures.
func Summarize(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.status == StatusOK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
