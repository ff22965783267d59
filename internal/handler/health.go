package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/lease-billing/pkg/response"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

type HealthHandler struct {
	deps    []dependency
	started time.Time
	timeout time.Duration
}

// NewHealthHandler checks the database and, when the client is not nil, redis.
// A nil redis client is reported as disabled.
func NewHealthHandler(db Pinger, rdb *redis.Client, timeout time.Duration) *HealthHandler {
	h := &HealthHandler{
		deps:    []dependency{{name: "database", ping: db.PingContext}},
		started: time.Now(),
		timeout: timeout,
	}
	if rdb != nil {
		h.deps = append(h.deps, dependency{name: "redis", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) status() HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
}

// Health reports that the process is serving
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.status())
}

// Ready pings every dependency and answers 503 when one of them fails
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.status()
	status.Checks = map[string]string{"redis": "disabled"}
	for _, dep := range h.deps {
		if err := dep.ping(ctx); err != nil {
			status.Status = "error"
			status.Checks[dep.name] = "failed: " + err.Error()
			continue
		}
		status.Checks[dep.name] = "ok"
	}

	if status.Status != "ok" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}
	response.Success(w, status)
}
