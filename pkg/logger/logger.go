package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	dayKey       ctxKey = "sim_day"
	operatorKey  ctxKey = "operator"
)

// Config mirrors config.LoggerConfig but avoids importing the config package here.
type Config struct {
	Level    string
	Encoding string
	AppName  string
}

// New builds a zap.Logger using the provided configuration.
func New(cfg Config) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "console":
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		level,
	)

	log := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.AppName != "" {
		log = log.With(zap.String("app", cfg.AppName))
	}
	return log, nil
}

// ContextWithRequestID attaches a request ID to the provided context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithDay attaches the simulated day being processed.
func ContextWithDay(ctx context.Context, day int) context.Context {
	return context.WithValue(ctx, dayKey, day)
}

// ContextWithOperator attaches the authenticated operator driving the request.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// DayFromContext returns the simulated day stored by ContextWithDay.
func DayFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	day, ok := ctx.Value(dayKey).(int)
	return day, ok
}

// RequestIDFromContext returns the request ID stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	reqID, ok := ctx.Value(requestIDKey).(string)
	return reqID, ok && reqID != ""
}

// WithRequestID enriches the logger with the request ID stored in the context.
func WithRequestID(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	if reqID, ok := RequestIDFromContext(ctx); ok {
		return base.With(zap.String("request_id", reqID))
	}
	return base
}

// FromContext enriches base with every known context field.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	log := WithRequestID(ctx, base)
	if ctx == nil || log == nil {
		return log
	}
	if day, ok := DayFromContext(ctx); ok {
		log = log.With(zap.Int("day", day))
	}
	if operator, ok := ctx.Value(operatorKey).(string); ok && operator != "" {
		log = log.With(zap.String("operator", operator))
	}
	return log
}
