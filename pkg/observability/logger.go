package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production logger in production and the development
// logger elsewhere. Unknown levels fall back to info.
func NewLogger(environment, level string) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	return zapCfg.Build()
}
