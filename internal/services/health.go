package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/database"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"

	healthCheckTimeout = 5 * time.Second
)

// HealthCheck checks one dependency. A failing critical check makes the
// service unhealthy; a failing non-critical one only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Latency     time.Duration          `json:"latency,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

type HealthService struct {
	checks  []HealthCheck
	details map[string]func() map[string]interface{}
	metrics *Metrics
	logger  *logrus.Logger
}

func NewHealthService(checks []HealthCheck, metrics *Metrics, logger *logrus.Logger) *HealthService {
	return &HealthService{
		checks:  checks,
		details: make(map[string]func() map[string]interface{}),
		metrics: metrics,
		logger:  logger,
	}
}

// DatabaseChecks builds the checks for the configured stores. Missing
// clients are skipped.
func DatabaseChecks(db *database.Database) []HealthCheck {
	checks := []HealthCheck{}

	if db.PG != nil {
		checks = append(checks, HealthCheck{Name: "postgresql", Critical: true, Check: func(ctx context.Context) error {
			return db.PG.Ping(ctx)
		}})
	}

	if db.Redis != nil && db.Redis.Hot != nil {
		checks = append(checks, HealthCheck{Name: "redis_hot", Critical: true, Check: func(ctx context.Context) error {
			return db.Redis.Hot.Ping(ctx).Err()
		}})
	}

	if db.Redis != nil && db.Redis.Warm != nil {
		checks = append(checks, HealthCheck{Name: "redis_warm", Check: func(ctx context.Context) error {
			return db.Redis.Warm.Ping(ctx).Err()
		}})
	}

	if db.Neo4j != nil {
		checks = append(checks, HealthCheck{Name: "neo4j", Check: func(ctx context.Context) error {
			return db.Neo4j.VerifyConnectivity(ctx)
		}})
	}

	return checks
}

// AddDetail attaches extra diagnostic data to every health report.
func (s *HealthService) AddDetail(name string, fn func() map[string]interface{}) {
	s.details[name] = fn
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Services:  make(map[string]string),
	}

	for _, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := check.Check(checkCtx)
		cancel()

		if err == nil {
			status.Services[check.Name] = HealthStatusHealthy
			s.metrics.SetHealth(check.Name, true)
			continue
		}

		status.Services[check.Name] = HealthStatusUnhealthy
		s.metrics.SetHealth(check.Name, false)

		entry := s.logger.WithError(err).WithField("service", check.Name)
		if check.Critical {
			status.Critical = append(status.Critical, check.Name)
			entry.Error("Critical service is unhealthy")
		} else {
			status.NonCritical = append(status.NonCritical, check.Name)
			entry.Warn("Non-critical service is unhealthy")
		}
	}

	switch {
	case len(status.Critical) > 0:
		status.Status = HealthStatusUnhealthy
	case len(status.NonCritical) > 0:
		status.Status = HealthStatusDegraded
	default:
		status.Status = HealthStatusHealthy
	}

	if len(s.details) > 0 {
		status.Details = make(map[string]interface{}, len(s.details))
		for name, fn := range s.details {
			status.Details[name] = fn()
		}
	}

	status.Latency = time.Since(start)
	return status
}
