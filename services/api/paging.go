package api

import (
	"fmt"
	"net/http"
	"strconv"

	"inventoried/services/inventory"
)

// parsePageRequest reads page/per_page query parameters. Absent parameters
// take the engine defaults; present ones must be positive integers.
func parsePageRequest(r *http.Request) (inventory.PageRequest, error) {
	var req inventory.PageRequest

	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid page %q", raw)
		}
		req.Page = n
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid per_page %q", raw)
		}
		req.PerPage = n
	}
	return req, nil
}

// listEnvelope is the wire shape of every paginated host response.
type listEnvelope struct {
	Count   int              `json:"count"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Total   int64            `json:"total"`
	Results []inventory.Host `json:"results"`
}

func envelopeFrom(res *inventory.ListResult) listEnvelope {
	results := res.Results
	if results == nil {
		results = []inventory.Host{}
	}
	return listEnvelope{
		Count:   res.Count,
		Page:    res.Page,
		PerPage: res.PerPage,
		Total:   res.Total,
		Results: results,
	}
}
