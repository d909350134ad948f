package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger constructs the service logger from ENV and LOG_LEVEL.
// The returned logger should be passed to other components for structured logging.
func InitLogger(serviceName string) (*zap.Logger, error) {
	env := strings.ToLower(os.Getenv("ENV"))
	return InitLoggerWithLevel(logLevel(env, os.Getenv("LOG_LEVEL")), serviceName, isDevelopment(env))
}

// InitLoggerWithLevel constructs a zap.Logger at the provided level. Development
// loggers write colourised console output; everything else writes JSON.
// The returned logger is named with the service name and installed as the global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	// keys match what the log shipper expects
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func isDevelopment(env string) bool {
	return env == "development" || env == "dev"
}

// logLevel picks the explicit LOG_LEVEL when it parses, otherwise debug for
// development and info everywhere else.
func logLevel(env, explicit string) zapcore.Level {
	if explicit != "" {
		if lvl, err := zapcore.ParseLevel(strings.ToLower(explicit)); err == nil {
			return lvl
		}
	}
	if isDevelopment(env) {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}
