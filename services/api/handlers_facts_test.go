package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"inventoried/services/inventory"
)

type factsResponse struct {
	Results []factResultDoc `json:"results"`
}

func TestMergeFacts(t *testing.T) {
	h, store := newTestAPI(t)
	host := seedHost(t, store, func(host *inventory.Host) {
		host.Facts = []inventory.FactSet{{Namespace: "ns1", Facts: map[string]string{"key1": "value1"}}}
	})

	target := fmt.Sprintf("/api/v1/hosts/%s/facts/ns1", host.ID)
	rec := doRequest(t, h, http.MethodPatch, target, map[string]string{"newkey1": "newvalue1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var resp factsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Status != "ok" {
		t.Fatalf("results = %+v", resp.Results)
	}

	stored, err := store.FindByID(context.Background(), testAccount, host.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	want := map[string]string{"key1": "value1", "newkey1": "newvalue1"}
	if !reflect.DeepEqual(stored.FactSetFor("ns1").Facts, want) {
		t.Fatalf("facts = %v, want %v", stored.FactSetFor("ns1").Facts, want)
	}
}

func TestReplaceFacts(t *testing.T) {
	h, store := newTestAPI(t)
	host := seedHost(t, store, func(host *inventory.Host) {
		host.Facts = []inventory.FactSet{{Namespace: "ns1", Facts: map[string]string{"key1": "value1", "key2": "value2"}}}
	})

	target := fmt.Sprintf("/api/v1/hosts/%s/facts/ns1", host.ID)
	rec := doRequest(t, h, http.MethodPut, target, map[string]string{"key3": "value3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	stored, err := store.FindByID(context.Background(), testAccount, host.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	want := map[string]string{"key3": "value3"}
	if !reflect.DeepEqual(stored.FactSetFor("ns1").Facts, want) {
		t.Fatalf("facts = %v, want %v", stored.FactSetFor("ns1").Facts, want)
	}
}

func TestBatchFactsWithMissingSibling(t *testing.T) {
	h, store := newTestAPI(t)
	host := seedHost(t, store, nil)
	missing := uuid.New()

	target := fmt.Sprintf("/api/v1/hosts/%s,%s/facts/ns1", host.ID, missing)
	rec := doRequest(t, h, http.MethodPatch, target, map[string]string{"a": "1"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d (%s), want 404", rec.Code, rec.Body.String())
	}
	var resp factsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].HostID != host.ID || resp.Results[0].Status != "ok" {
		t.Fatalf("first result = %+v", resp.Results[0])
	}
	if resp.Results[1].HostID != missing || resp.Results[1].Status != "not_found" {
		t.Fatalf("second result = %+v", resp.Results[1])
	}

	// The missing sibling never rolls back the landed mutation.
	stored, err := store.FindByID(context.Background(), testAccount, host.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if fs := stored.FactSetFor("ns1"); fs == nil || fs.Facts["a"] != "1" {
		t.Fatalf("facts = %v, want merged a=1", stored.Facts)
	}
}

func TestFactsBadRequests(t *testing.T) {
	h, store := newTestAPI(t)
	host := seedHost(t, store, nil)
	target := fmt.Sprintf("/api/v1/hosts/%s/facts/ns1", host.ID)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "invalid json", method: http.MethodPatch, target: target, body: "{not json"},
		{name: "empty merge", method: http.MethodPatch, target: target, body: "{}"},
		{name: "null body", method: http.MethodPut, target: target, body: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			req.Header.Set(IdentityHeader, identityHeader(testAccount))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d (%s), want 400", rec.Code, rec.Body.String())
			}
		})
	}

	// An empty replace legitimately empties the namespace.
	rec := doRequest(t, h, http.MethodPut, target, map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("empty replace status = %d (%s)", rec.Code, rec.Body.String())
	}
	stored, err := store.FindByID(context.Background(), testAccount, host.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if fs := stored.FactSetFor("ns1"); fs == nil || len(fs.Facts) != 0 {
		t.Fatalf("namespace after empty replace = %v, want present and empty", fs)
	}
}
