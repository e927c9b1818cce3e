package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-payments/internal/common"
)

// DefaultBanner is the plaintext body served on the root path.
const DefaultBanner = "Payment service is running."

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness; main flips it off when shutdown begins so load
// balancers drain the instance before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// Probe checks a single dependency.
type Probe func(ctx context.Context) error

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
	Banner  string
}

// Root answers the root path with a plaintext liveness string.
func (h Handler) Root(w http.ResponseWriter, _ *http.Request) {
	banner := h.Banner
	if banner == "" {
		banner = DefaultBanner
	}
	writeText(w, banner)
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "ok")
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := h.Probes[name](ctx)
		cancel()
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("probe", name).Msg("readiness probe failed")
			status[name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	common.JSON(w, code, status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.Timeout
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
