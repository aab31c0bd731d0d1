package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
	ordersUC "github.com/miniconomy2025/sumsang-phones/usecase/orders"
)

type OrderHandler struct {
	baseHandler
	uc *ordersUC.UseCase
}

func NewOrderHandler(uc *ordersUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Place a customer order
// @Tags orders
// @Router /api/v1/orders [post]
func (h *OrderHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CreateOrderRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	order, err := h.uc.Create(stdCtx, req.Lines())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.CreateOrderResponse{
		OrderID:       order.ID,
		Reference:     strconv.FormatInt(order.ID, 10),
		Total:         order.Total,
		AccountNumber: h.uc.PaymentAccount(stdCtx),
		Status:        order.Status,
	})
}

// @Summary Get a customer order
// @Tags orders
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) Get(ctx *fasthttp.RequestCtx) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "invalid order id", fmt.Errorf("%q", raw)))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	order, err := h.uc.Get(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, order)
}
