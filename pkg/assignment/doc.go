// Package assignment models the per-user role assignment: the immutable
// primary role, the mutable permission grant set, and the leadership flags
// derived from them.
//
// Two invariants shape the API surface. The primary role is set once at
// user creation and no operation here (or anywhere in the module) changes
// it afterwards; post-creation mutation is wholesale permission-set
// replacement via User.WithPermissions. Leadership flags are never stored
// state: DeriveLeadership recomputes them from (primary role, permissions)
// on every mutation and on every ingestion, so stored flags can never drift
// from the grants that justify them.
//
// Record handles the upstream directory payloads, including the duck-typed
// permission entries the CRM API emits (number, string, or object).
package assignment
