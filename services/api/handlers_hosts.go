package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inventoried/pkg/bus"
	"inventoried/services/inventory"
)

func (a *API) handleUpsertHost(w http.ResponseWriter, r *http.Request) {
	var sub inventory.Submission
	if err := decodeJSON(r, &sub); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("request body is not a valid host document"))
		return
	}

	account := accountFrom(r.Context())
	if sub.Account != "" && sub.Account != account {
		respondError(w, http.StatusBadRequest, errors.New("account does not match identity"))
		return
	}
	sub.Account = account

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.coordinator.Upsert(ctx, sub)
	if err != nil {
		a.respondUpsertError(w, err)
		return
	}

	subject := bus.SubjectHostUpdated
	status := http.StatusOK
	if res.Created {
		subject = bus.SubjectHostCreated
		status = http.StatusCreated
	}
	a.publishHostEvent(r.Context(), subject, res.Host)

	respondJSON(w, status, res.Host)
}

func (a *API) respondUpsertError(w http.ResponseWriter, err error) {
	var validationErr *inventory.ValidationError
	var ambiguousErr *inventory.AmbiguousMatchError
	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, err)
	case errors.As(err, &ambiguousErr):
		// A violated uniqueness invariant; worth an operator's attention.
		a.logger.Printf("ERROR %v", err)
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) handleListHosts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	filter := inventory.ListFilter{
		DisplayName: r.URL.Query().Get("display_name"),
		Tags:        r.URL.Query()["tag"],
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.queries.List(ctx, accountFrom(r.Context()), filter, page)
	if err != nil {
		a.respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelopeFrom(res))
}

func (a *API) handleHostsByIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := parseHostIDs(chi.URLParam(r, "hostIDs"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.queries.ByIDs(ctx, accountFrom(r.Context()), ids, page)
	if err != nil {
		a.respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelopeFrom(res))
}

func (a *API) respondQueryError(w http.ResponseWriter, err error) {
	var validationErr *inventory.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, inventory.ErrPageOutOfRange):
		respondError(w, http.StatusNotFound, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}

func parseHostIDs(raw string) ([]uuid.UUID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, errors.New("host id list contains a malformed id")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("host id list is required")
	}
	return ids, nil
}

func (a *API) publishHostEvent(ctx context.Context, subject string, h inventory.Host) {
	if a.bus == nil {
		return
	}
	// Best effort: a bus outage never fails the request.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	evt := bus.HostEvent{
		HostID:     h.ID,
		Account:    h.Account,
		InsightsID: h.InsightsID,
		At:         h.Updated,
	}
	if err := a.bus.Publish(pubCtx, subject, evt); err != nil {
		a.logger.Printf("WARN publish %s: %v", subject, err)
	}
}
