// Command fast-dispatch serves the demo routes over the raw TCP transport.
//
// Configuration is read from FD_* environment variables; see package config.
package main

import (
	"github.com/searchktools/fast-dispatch/app"
	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/internal/demo"
	"go.uber.org/zap"
)

func main() {
	store := demo.NewUserStore(demo.User{
		Name:   "John Doe",
		Email:  "john@example.com",
		Age:    30,
		Active: true,
	})

	app.New(func(setup *core.Setup, logger *zap.Logger, monitor *observability.Monitor) {
		demo.Register(setup, demo.NewHandlers(logger, monitor))
	}, app.WithResource(store)).Run()
}
