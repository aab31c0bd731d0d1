// Package httpcontext bridges fasthttp requests to context.Context for the
// use cases: a deadline, the request ID echoed to the caller and forwarded to
// counterparties, and the operator the auth guard identified.
package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/miniconomy2025/sumsang-phones/pkg/logger"
)

// HeaderRequestID is read from the caller and echoed on the response.
const HeaderRequestID = "X-Request-ID"

// operatorValue is the fasthttp user value holding the authenticated operator.
// Only the auth guard sets it; request headers never do.
const operatorValue = "httpcontext.operator"

// SetOperator records the operator identified for this request.
func SetOperator(ctx *fasthttp.RequestCtx, operator string) {
	ctx.SetUserValue(operatorValue, operator)
}

// Operator returns the operator recorded by SetOperator, or "".
func Operator(ctx *fasthttp.RequestCtx) string {
	operator, _ := ctx.UserValue(operatorValue).(string)
	return operator
}

type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach derives a request-scoped context bounded by the adapter timeout.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := requestID(ctx)
	ctx.Response.Header.Set(HeaderRequestID, reqID)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)

	if operator := Operator(ctx); operator != "" {
		stdCtx = appLogger.ContextWithOperator(stdCtx, operator)
	}
	return stdCtx, cancel
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if header := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderRequestID))); header != "" {
		return header
	}
	return uuid.NewString()
}
