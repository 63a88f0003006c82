package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inventoried/pkg/bus"
	"inventoried/services/inventory"
)

// factResultDoc is the per-host outcome reported for batch fact
// operations. Sibling hosts are independent units of mutation; one
// missing host never rolls back the others.
type factResultDoc struct {
	HostID uuid.UUID `json:"host_id"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

func (a *API) handleMergeFacts(w http.ResponseWriter, r *http.Request) {
	a.applyFacts(w, r, inventory.OpMerge)
}

func (a *API) handleReplaceFacts(w http.ResponseWriter, r *http.Request) {
	a.applyFacts(w, r, inventory.OpReplace)
}

func (a *API) applyFacts(w http.ResponseWriter, r *http.Request, op inventory.FactOp) {
	ids, err := parseHostIDs(chi.URLParam(r, "hostIDs"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	namespace := chi.URLParam(r, "namespace")

	var incoming map[string]string
	if err := decodeJSON(r, &incoming); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("request body is not valid JSON"))
		return
	}

	account := accountFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	results, err := a.reconciler.Apply(ctx, account, ids, op, namespace, incoming)
	if err != nil {
		var validationErr *inventory.ValidationError
		if errors.As(err, &validationErr) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	docs := make([]factResultDoc, 0, len(results))
	for _, res := range results {
		doc := factResultDoc{HostID: res.HostID, Status: "ok"}
		switch {
		case res.Err == nil:
			a.publishFactsEvent(r.Context(), account, res.HostID, namespace)
		case errors.Is(res.Err, inventory.ErrHostNotFound):
			doc.Status = "not_found"
			status = http.StatusNotFound
		default:
			doc.Status = "error"
			doc.Detail = res.Err.Error()
			status = http.StatusInternalServerError
		}
		docs = append(docs, doc)
	}

	respondJSON(w, status, map[string]any{"results": docs})
}

func (a *API) publishFactsEvent(ctx context.Context, account string, id uuid.UUID, namespace string) {
	if a.bus == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	evt := bus.FactsEvent{
		HostID:    id,
		Account:   account,
		Namespace: namespace,
		At:        time.Now().UTC(),
	}
	if err := a.bus.Publish(pubCtx, bus.SubjectFactsUpdated, evt); err != nil {
		a.logger.Printf("WARN publish %s: %v", bus.SubjectFactsUpdated, err)
	}
}
