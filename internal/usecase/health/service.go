package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional collaborator is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	annotation AnnotationChecker
}

// New creates a Service. annotation can be nil.
func New(db DBPinger, annotation AnnotationChecker) *Service {
	return &Service{db: db, annotation: annotation}
}

// Check runs health checks against all components.
// The annotation provider can only degrade the report: its failures fall back to default text.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.annotation != nil {
		if err := s.annotation.HealthCheck(ctx); err != nil {
			checks["annotation"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["annotation"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
