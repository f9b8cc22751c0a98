package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger tagged with the service name.
// LOG_ENV (or APP_ENV) = "production" selects JSON output at info level;
// anything else selects colored console output at debug level.
func New(service string) (*zap.Logger, error) {
	env := os.Getenv("LOG_ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}

	var cfg zap.Config
	opts := []zap.Option{zap.AddCaller(), zap.Fields(zap.String("service", service))}
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build(opts...)
}
