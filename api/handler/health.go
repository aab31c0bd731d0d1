package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/internal/infrastructure/monitor"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
)

// StatusSource reports dependency health.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
	// redisRequired makes Redis part of readiness when the pipeline lease uses it.
	redisRequired bool
}

func NewHealthHandler(mon StatusSource, redisRequired bool, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler:   newBaseHandler(adapter, logger),
		monitor:       mon,
		redisRequired: redisRequired,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"last_check": status.LastCheck,
		"services": map[string]interface{}{
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"journal": map[string]interface{}{
				"online": status.Journal,
				"size":   status.JournalSize,
			},
		},
	}

	healthy := status.PostgreSQL && status.Journal
	if h.redisRequired {
		healthy = healthy && status.Redis
	}
	if healthy {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.Failure("DEGRADED", "dependencies unhealthy", payload))
}
