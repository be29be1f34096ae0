package di

import (
	"net/http"

	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/application/commands/bus"
	querybus "stackit/application/queries/bus"
	"stackit/infrastructure/config"
	"stackit/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *board.Registry
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Metrics    *observability.Metrics
	Handler    http.Handler
}

// Close tears down every board session and flushes the logger
func (c *Container) Close() {
	c.Registry.Close()
	_ = c.Logger.Sync()
}
