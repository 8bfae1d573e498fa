package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/apexflow/api/internal/domain"
)

// HealthProbe checks one dependency. A nil return marks the check healthy.
type HealthProbe func(ctx context.Context) error

// SystemService reports process and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// BuildInfo carries release metadata stamped at startup.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps wires probes and build metadata into a SystemService.
type SystemServiceDeps struct {
	Probes map[string]HealthProbe
	Build  BuildInfo
	Clock  func() time.Time
}

type systemService struct {
	probes map[string]HealthProbe
	build  BuildInfo
	clock  func() time.Time
}

// NewSystemService builds a SystemService over the supplied probes.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	clock := deps.Clock
	probes := make(map[string]HealthProbe, len(deps.Probes))
	for name, probe := range deps.Probes {
		if name == "" || probe == nil {
			return nil, errors.New("services: system service probes must be named and non-nil")
		}
		probes[name] = probe
	}
	return &systemService{
		probes: probes,
		build:  deps.Build,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	now := s.clock()
	report := SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(s.probes)),
		Version:     s.build.Version,
		Environment: s.build.Environment,
		GeneratedAt: now,
	}
	if !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	for name, probe := range s.probes {
		started := s.clock()
		err := probe(ctx)
		check := domain.SystemHealthCheck{
			Status:    domain.HealthStatusOK,
			Latency:   s.clock().Sub(started),
			CheckedAt: started,
		}
		if err != nil {
			check.Status = domain.HealthStatusDegraded
			check.Error = err.Error()
			report.Status = domain.HealthStatusDegraded
		}
		report.Checks[name] = check
	}
	return report, nil
}
