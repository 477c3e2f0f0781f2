package middleware

import (
	"context"
	"net/http"

	"github.com/enrollhq/accessgate/pkg/contextkeys"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/httputil"
)

// BearerMiddleware extracts the caller's bearer credential and stores it on
// the request context. The credential is parsed but not verified here; each
// upstream call re-checks expiry itself, and anything deeper is the CRM
// backend's job.
type BearerMiddleware struct {
	optional bool // if true, allow requests without a credential
}

// NewBearerMiddleware creates the credential-extraction middleware.
func NewBearerMiddleware(optional bool) *BearerMiddleware {
	return &BearerMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with credential extraction.
func (m *BearerMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		cred, err := crmclient.ParseBearer(authHeader)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid authorization header")
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.CredentialKey, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CredentialFromRequest extracts the parsed credential from the request
// context. Returns nil when the request carried none.
func CredentialFromRequest(r *http.Request) *crmclient.Credential {
	cred, ok := r.Context().Value(contextkeys.CredentialKey).(*crmclient.Credential)
	if !ok {
		return nil
	}
	return cred
}
