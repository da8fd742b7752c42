package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/carlookout/server/internal/breaker"
)

// HealthHandler reports process liveness plus the per-source breaker state,
// so operators can see at a glance which marketplaces are being skipped.
type HealthHandler struct {
	Breaker *breaker.Breaker
	Version string
	started time.Time
}

func NewHealthHandler(brk *breaker.Breaker, version string) *HealthHandler {
	return &HealthHandler{Breaker: brk, Version: version, started: time.Now()}
}

type healthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	Sources       []breaker.Snapshot `json:"sources"`
}

// Healthz handles GET /healthz. The process is "degraded" when any source
// breaker is open, "ok" otherwise; both return 200 since the aggregator
// still serves partial results.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	var snaps []breaker.Snapshot
	status := "ok"
	if h.Breaker != nil {
		snaps = h.Breaker.Snapshot()
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].Source < snaps[j].Source })
		for _, s := range snaps {
			if s.State == breaker.StateOpen {
				status = "degraded"
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		Version:       h.Version,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Sources:       snaps,
	})
}

// Readyz handles GET /readyz.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
