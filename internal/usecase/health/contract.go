package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// AnnotationChecker checks annotation provider availability.
type AnnotationChecker interface {
	HealthCheck(ctx context.Context) error
}
