package app

import (
	"github.com/lektio/lektio/internal/config"
	"github.com/lektio/lektio/internal/relay"
)

// Dependencies holds the relay server's services and handlers.
type Dependencies struct {
	Hub          *relay.Hub
	RelayHandler *relay.Handler
}

// BuildDependencies initializes and wires the relay components.
func BuildDependencies(cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Hub = relay.NewHub()
	deps.RelayHandler = relay.NewHandler(deps.Hub)

	return deps
}
