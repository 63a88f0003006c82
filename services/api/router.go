package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes constructs the chi router containing all inventory endpoints.
// Health and metrics endpoints are mounted by the server main, outside the
// identity requirement.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireIdentity)
		r.Post("/hosts", a.handleUpsertHost)
		r.Get("/hosts", a.handleListHosts)
		r.Get("/hosts/{hostIDs}", a.handleHostsByIDs)
		r.Patch("/hosts/{hostIDs}/facts/{namespace}", a.handleMergeFacts)
		r.Put("/hosts/{hostIDs}/facts/{namespace}", a.handleReplaceFacts)
	})

	return r, nil
}
