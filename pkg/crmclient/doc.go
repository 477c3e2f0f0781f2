// Package crmclient is the HTTP client for the admissions CRM backend: the
// permissions update, registration, ban/unban, and directory endpoints the
// access-control subsystem consumes.
//
// Every call requires a bearer credential whose expiry is checked locally
// before any request is sent; an expired session short-circuits to
// ErrStaleCredential. Directory reads keep a two-tier fallback cache (an
// in-process LRU and an optional shared redis tier) so a stale session can
// still render the last known data while the user re-authenticates.
// Mutations have no fallback and are never applied locally before the
// upstream confirms them.
package crmclient
