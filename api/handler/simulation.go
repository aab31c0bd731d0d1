package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/internal/services"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
	dashboardUC "github.com/miniconomy2025/sumsang-phones/usecase/dashboard"
)

// SimulationController starts and stops a run.
type SimulationController interface {
	Start(ctx context.Context, epoch time.Time) (domain.Clock, error)
	Stop(ctx context.Context) (domain.Clock, error)
}

// DayTicker forces one scheduler poll.
type DayTicker interface {
	Tick(ctx context.Context) (services.TickResult, error)
}

type SimulationHandler struct {
	baseHandler
	sim       SimulationController
	ticker    DayTicker
	dashboard *dashboardUC.UseCase
	now       func() time.Time
}

func NewSimulationHandler(sim SimulationController, ticker DayTicker, dashboard *dashboardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SimulationHandler {
	return &SimulationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sim:         sim,
		ticker:      ticker,
		dashboard:   dashboard,
		now:         time.Now,
	}
}

// @Summary Start the simulation
// @Tags simulation
// @Router /api/v1/simulation/start [post]
func (h *SimulationHandler) Start(ctx *fasthttp.RequestCtx) {
	var req transport.StartSimulationRequest
	if !h.decode(ctx, &req, true) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	clock, err := h.sim.Start(stdCtx, req.Epoch(h.now()))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, clock)
}

// @Summary Stop the simulation
// @Tags simulation
// @Router /api/v1/simulation/stop [post]
func (h *SimulationHandler) Stop(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	clock, err := h.sim.Stop(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, clock)
}

// @Summary Run the scheduler once
// @Tags simulation
// @Router /api/v1/simulation/tick [post]
func (h *SimulationHandler) Tick(ctx *fasthttp.RequestCtx) {
	if h.ticker == nil {
		h.respondJSON(ctx, http.StatusNotFound, transport.Failure(string(domain.ErrCodeNotFound), "scheduler disabled", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.ticker.Tick(stdCtx)
	if err != nil {
		h.logger.Warn("manual tick failed", zap.Int("day", result.Day), zap.Error(err))
		h.respondJSON(ctx, http.StatusInternalServerError, transport.Failure(string(domain.ErrCodeInternal), err.Error(), result))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Simulation overview
// @Tags simulation
// @Router /api/v1/simulation [get]
func (h *SimulationHandler) Overview(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := h.dashboard.Overview(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, out)
}
