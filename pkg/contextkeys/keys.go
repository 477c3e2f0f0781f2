// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// CredentialKey contains *crmclient.Credential.
	// Set by: middleware.BearerMiddleware (pkg/middleware/auth.go)
	// Required by: all proxied upstream calls
	CredentialKey Key = "credential"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestID
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"
)
