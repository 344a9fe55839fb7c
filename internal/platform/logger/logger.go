package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sproutmarket/pkg/requestcontext"
)

// New builds the service logger. Production gets JSON to stdout; anything
// else gets the human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

// WithRequest returns the logger with the request correlation ID attached,
// when one is present on the context.
func WithRequest(ctx context.Context, log *zap.Logger) *zap.Logger {
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		return log.With(zap.String("request_id", reqID))
	}
	return log
}
