package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/truemediaorg/mentionbot/model"
	"golang.org/x/exp/maps"

	log "github.com/sirupsen/logrus"
)

const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"

	componentCheckTimeout = 5 * time.Second
)

type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Detail  any    `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthCheck reports on one component of the bot.
type HealthCheck func(ctx context.Context) ComponentHealth

type HealthReport struct {
	Status        string                     `json:"status"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Timestamp     time.Time                  `json:"timestamp"`
	Components    map[string]ComponentHealth `json:"components"`
}

type Healthchecker struct {
	Server http.Server

	checks  map[string]HealthCheck
	started time.Time
	now     func() time.Time
}

func NewHealthchecker(healthcheckPort int, checks map[string]HealthCheck) *Healthchecker {
	h := &Healthchecker{
		checks:  checks,
		started: time.Now(),
		now:     time.Now,
	}
	mux := http.NewServeMux()
	mux.Handle("/health", h.handleHealthReport())
	mux.Handle("/", handleHealthcheck())
	h.Server = http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", healthcheckPort),
		Handler: mux,
	}
	return h
}

func handleHealthcheck() http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			log.Debug("received healthcheck request")
			// This will have a status of 200
			fmt.Fprintf(w, "all good in the hood")
		},
	)
}

// Report runs every check. The bot is degraded if any component is unhealthy.
func (h *Healthchecker) Report(ctx context.Context) HealthReport {
	now := h.now()
	report := HealthReport{
		Status:        HealthStatusHealthy,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.UTC(),
		Components:    map[string]ComponentHealth{},
	}
	names := maps.Keys(h.checks)
	sort.Strings(names)
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, componentCheckTimeout)
		component := h.checks[name](checkCtx)
		cancel()
		if !component.Healthy {
			log.WithField("component", name).WithField("error", component.Error).Warn("component unhealthy")
			report.Status = HealthStatusDegraded
		}
		report.Components[name] = component
	}
	return report
}

func (h *Healthchecker) handleHealthReport() http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			report := h.Report(r.Context())
			w.Header().Set("Content-Type", "application/json")
			if report.Status != HealthStatusHealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			if err := json.NewEncoder(w).Encode(report); err != nil {
				log.Errorf("error writing health report: %v", err)
			}
		},
	)
}

type StatsReader interface {
	Stats(ctx context.Context) (model.Stats, error)
}

// StoreCheck reports the mention counts of the store.
func StoreCheck(store StatsReader) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats, err := store.Stats(ctx)
		if err != nil {
			return ComponentHealth{Error: err.Error()}
		}
		return ComponentHealth{Healthy: true, Detail: stats}
	}
}

type CredentialReporter interface {
	CredentialStatus(now time.Time) CredentialStatus
}

// CredentialCheck is unhealthy once the session cookies have expired.
func CredentialCheck(credentials CredentialReporter) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		status := credentials.CredentialStatus(time.Now())
		if status.Expired {
			return ComponentHealth{Detail: status, Error: "credentials expired"}
		}
		return ComponentHealth{Healthy: true, Detail: status}
	}
}
