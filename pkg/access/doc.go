// Package access implements the page-level access policy for the dashboard.
//
// The policy is a static allow-list: each page maps to the set of roles that
// may view it, derived from the per-role page tables. A page with no entry
// is denied for everyone. Decisions are pure functions of (effective roles,
// page) so callers can evaluate them on every render without caching.
//
// The policy gates UI visibility in two ways: navigation entries render
// greyed out when CanAccess fails (the user can see what exists but not
// enter it), and a forbidden current route redirects to FallbackPage.
package access
