// Package obs carries the service's observability: the shared structured
// logger, Prometheus HTTP metrics and build information.
package obs

import (
	"go.uber.org/zap"
)

// NewLogger builds the shared structured logger. Development mode uses the
// console encoder; both modes keep debug enabled because the transaction
// executor logs its success messages at that level.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" || env == "dev" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return cfg.Build()
}
