package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// IdentityHeader carries the upstream-authenticated account identity as a
// base64-encoded JSON document. The gateway in front of this service is
// responsible for populating it; no further trust decisions happen here.
const IdentityHeader = "x-rh-identity"

type identityDoc struct {
	Identity struct {
		AccountNumber string `json:"account_number"`
	} `json:"identity"`
}

type accountKey struct{}

// requireIdentity rejects requests without a decodable identity header and
// stores the account scope in the request context. A missing header is a
// bad request; a present but undecodable or empty one is forbidden.
func (a *API) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdentityHeader)
		if raw == "" {
			respondError(w, http.StatusBadRequest, errors.New("identity header is required"))
			return
		}

		account, err := decodeIdentity(raw)
		if err != nil {
			respondError(w, http.StatusForbidden, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey{}, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeIdentity(raw string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", errors.New("identity header is not valid base64")
	}

	var doc identityDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", errors.New("identity header is not valid JSON")
	}
	account := strings.TrimSpace(doc.Identity.AccountNumber)
	if account == "" {
		return "", errors.New("identity has no account number")
	}
	return account, nil
}

// accountFrom returns the identity-scoped account stored by
// requireIdentity. Handlers behind the middleware can rely on it being
// present.
func accountFrom(ctx context.Context) string {
	account, _ := ctx.Value(accountKey{}).(string)
	return account
}
