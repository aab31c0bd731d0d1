package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
	deliveryUC "github.com/miniconomy2025/sumsang-phones/usecase/delivery"
	ordersUC "github.com/miniconomy2025/sumsang-phones/usecase/orders"
)

// NotificationHandler receives callbacks from the bank and the carriers.
type NotificationHandler struct {
	baseHandler
	orders   *ordersUC.UseCase
	delivery *deliveryUC.UseCase
}

func NewNotificationHandler(orders *ordersUC.UseCase, delivery *deliveryUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		orders:      orders,
		delivery:    delivery,
	}
}

// @Summary Bank transfer settled
// @Tags notifications
// @Router /api/v1/notifications/bank [post]
func (h *NotificationHandler) Bank(ctx *fasthttp.RequestCtx) {
	var req transport.BankNotificationRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	order, err := h.orders.RecordPayment(stdCtx, req.Reference, req.Amount)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, order)
}

// @Summary Delivery collected or dropped off
// @Tags notifications
// @Router /api/v1/notifications/logistics [post]
func (h *NotificationHandler) Logistics(ctx *fasthttp.RequestCtx) {
	var req transport.LogisticsNotificationRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	carrier, err := domain.ParseCarrier(req.Carrier)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	outcome, err := h.delivery.Complete(stdCtx, carrier, req.Reference)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, outcome)
}
