package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"inventoried/services/inventory"
)

func TestUpsertHostCreateThenUpdate(t *testing.T) {
	h, _ := newTestAPI(t)
	insights := "11111111-1111-1111-1111-111111111111"

	rec := doRequest(t, h, http.MethodPost, "/api/v1/hosts", map[string]any{
		"insights_id":  insights,
		"display_name": "first",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	var created inventory.Host
	decodeBody(t, rec, &created)
	if created.ID == uuid.Nil || created.Account != testAccount {
		t.Fatalf("created host = %+v", created)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/hosts", map[string]any{
		"insights_id":  insights,
		"display_name": "second",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (%s)", rec.Code, rec.Body.String())
	}
	var updated inventory.Host
	decodeBody(t, rec, &updated)
	if updated.ID != created.ID {
		t.Fatalf("update landed on %s, want %s", updated.ID, created.ID)
	}
	if updated.DisplayName == nil || *updated.DisplayName != "second" {
		t.Fatalf("display name = %v", updated.DisplayName)
	}
}

func TestUpsertHostRejections(t *testing.T) {
	h, _ := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "account mismatch", body: map[string]any{"account": "999999"}},
		{name: "malformed insights id", body: map[string]any{"insights_id": "not-a-uuid"}},
		{name: "fqdn with whitespace", body: map[string]any{"fqdn": "bad host.example.com"}},
		{name: "unknown field", body: map[string]any{"no_such_field": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/v1/hosts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d (%s), want 400", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListHostsEnvelope(t *testing.T) {
	h, store := newTestAPI(t)
	for i := 0; i < 3; i++ {
		seedHost(t, store, nil)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/hosts?per_page=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var env listEnvelope
	decodeBody(t, rec, &env)
	if env.Count != 2 || env.Page != 1 || env.PerPage != 2 || env.Total != 3 {
		t.Fatalf("envelope = %+v", env)
	}
	if len(env.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(env.Results))
	}
}

func TestListHostsFilters(t *testing.T) {
	h, store := newTestAPI(t)
	tagged := seedHost(t, store, func(host *inventory.Host) {
		host.Tags = []string{"env=prod", "region=eu"}
	})
	seedHost(t, store, func(host *inventory.Host) {
		host.DisplayName = strptr("web-server")
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/hosts?tag=env%3Dprod&tag=region%3Deu", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var env listEnvelope
	decodeBody(t, rec, &env)
	if env.Total != 1 || env.Results[0].ID != tagged.ID {
		t.Fatalf("tag filter envelope = %+v", env)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/hosts?display_name=web", nil)
	decodeBody(t, rec, &env)
	if env.Total != 1 {
		t.Fatalf("name filter total = %d, want 1", env.Total)
	}
}

func TestListHostsPagingErrors(t *testing.T) {
	h, store := newTestAPI(t)
	seedHost(t, store, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "non-numeric page", target: "/api/v1/hosts?page=abc", wantStatus: http.StatusBadRequest},
		{name: "zero page", target: "/api/v1/hosts?page=0", wantStatus: http.StatusBadRequest},
		{name: "per_page above cap", target: "/api/v1/hosts?per_page=101", wantStatus: http.StatusBadRequest},
		{name: "page past data", target: "/api/v1/hosts?page=2", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d (%s), want %d", rec.Code, rec.Body.String(), tt.wantStatus)
			}
		})
	}
}

func TestHostsByIDs(t *testing.T) {
	h, store := newTestAPI(t)
	h1 := seedHost(t, store, nil)
	h2 := seedHost(t, store, nil)

	target := fmt.Sprintf("/api/v1/hosts/%s,%s,%s", h1.ID, uuid.New(), h2.ID)
	rec := doRequest(t, h, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var env listEnvelope
	decodeBody(t, rec, &env)
	if env.Total != 2 || env.Count != 2 {
		t.Fatalf("envelope = %+v, want the unknown id silently omitted", env)
	}
	if strings.Compare(env.Results[0].ID.String(), env.Results[1].ID.String()) >= 0 {
		t.Fatalf("results not ordered by id: %s, %s", env.Results[0].ID, env.Results[1].ID)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/hosts/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", rec.Code)
	}
}
