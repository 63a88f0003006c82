package api

import (
	"errors"
	"io"
	"log"

	"inventoried/pkg/bus"
	"inventoried/services/inventory"
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	// Bus is optional; when nil no change events are published.
	Bus *bus.Bus
	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// API wires the inventory engine and configuration for HTTP handlers.
type API struct {
	store       inventory.Store
	coordinator *inventory.Coordinator
	reconciler  *inventory.Reconciler
	queries     *inventory.Queries
	bus         *bus.Bus
	logger      *log.Logger
}

// New initialises the API layer over the given store.
func New(store inventory.Store, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &API{
		store:       store,
		coordinator: inventory.NewCoordinator(store),
		reconciler:  inventory.NewReconciler(store),
		queries:     inventory.NewQueries(store),
		bus:         cfg.Bus,
		logger:      logger,
	}, nil
}
