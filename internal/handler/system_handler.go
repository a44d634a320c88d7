package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const healthTimeout = 3 * time.Second

// Prober reports per-store reachability; a nil error means healthy.
type Prober interface {
	Check(ctx context.Context) map[string]error
}

// QueueDepther reports the backlog of the attempt queue.
type QueueDepther interface {
	Depth(ctx context.Context) (int64, error)
}

// SystemHandler reports service health.
type SystemHandler struct {
	probe     Prober
	queue     QueueDepther
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(probe Prober, queue QueueDepther, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		probe:     probe,
		queue:     queue,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Checks     map[string]string `json:"checks"`
	QueueDepth int64             `json:"queue_attempts"`
	Goroutines int               `json:"goroutines"`
	HeapAlloc  uint64            `json:"heap_alloc"`
	GoVersion  string            `json:"go_version"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:     "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Checks:     make(map[string]string),
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}

	for name, err := range h.probe.Check(ctx) {
		if err != nil {
			h.log.Warn().Err(err).Str("store", name).Msg("Health check failed")
			report.Checks[name] = "down"
			report.Status = "degraded"
			continue
		}
		report.Checks[name] = "up"
	}

	if depth, err := h.queue.Depth(ctx); err == nil {
		report.QueueDepth = depth
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	report.HeapAlloc = ms.HeapAlloc

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
