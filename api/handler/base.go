package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/api/transport"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(payload.Bytes())
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.Success(data, nil))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	h.respondJSON(ctx, status, transport.Failure(code, err.Error(), nil))
}

// decode unmarshals the request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}, allowEmpty bool) bool {
	body := ctx.PostBody()
	if len(body) == 0 && allowEmpty {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.logger.Debug("invalid payload", zap.Error(err))
		h.respondJSON(ctx, http.StatusBadRequest, transport.Failure(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return false
	}
	return true
}

// NewPanicHandler answers a panicking request with a 500 envelope instead of
// letting it take the server down.
func NewPanicHandler(logger *zap.Logger) func(*fasthttp.RequestCtx, interface{}) {
	h := newBaseHandler(nil, logger)
	return func(ctx *fasthttp.RequestCtx, recovered interface{}) {
		h.logger.Error("handler panic",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Any("panic", recovered))
		h.respondJSON(ctx, http.StatusInternalServerError, transport.Failure(string(domain.ErrCodeInternal), "internal error", nil))
	}
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeTerminal):
		return http.StatusUnprocessableEntity, string(domain.ErrCodeTerminal)
	case domain.IsDomainError(err, domain.ErrCodeRejected):
		return http.StatusBadGateway, string(domain.ErrCodeRejected)
	case domain.IsDomainError(err, domain.ErrCodeUnavailable):
		return http.StatusServiceUnavailable, string(domain.ErrCodeUnavailable)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}

