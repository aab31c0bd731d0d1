package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
	dashboardUC "github.com/miniconomy2025/sumsang-phones/usecase/dashboard"
)

type DashboardHandler struct {
	baseHandler
	uc *dashboardUC.UseCase
}

func NewDashboardHandler(uc *dashboardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Parts, stock and capacity
// @Tags dashboard
// @Router /api/v1/inventory [get]
func (h *DashboardHandler) Inventory(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	inv, err := h.uc.Inventory(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, inv)
}

// @Summary List transactions of one kind
// @Tags dashboard
// @Router /api/v1/transactions/{kind} [get]
func (h *DashboardHandler) Transactions(ctx *fasthttp.RequestCtx) {
	kind, _ := ctx.UserValue("kind").(string)
	args := ctx.QueryArgs()
	page := dashboardUC.Page{
		Limit:  parseInt(string(args.Peek("limit")), 50),
		Offset: parseInt(string(args.Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.uc.Transactions(stdCtx, domain.Kind(kind), domain.Status(args.Peek("status")), page)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.Success(list, transport.PageMeta{
		Limit:  max(page.Limit, 0),
		Offset: max(page.Offset, 0),
		Count:  list.Len(),
	}))
}

// @Summary Recent status transitions
// @Tags dashboard
// @Router /api/v1/events [get]
func (h *DashboardHandler) Events(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	var kind domain.Kind
	if raw := string(args.Peek("kind")); raw != "" {
		parsed, err := domain.ParseKind(raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		kind = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.Events(stdCtx, kind, int64(parseInt(string(args.Peek("id")), 0)), parseInt(string(args.Peek("limit")), 0))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
