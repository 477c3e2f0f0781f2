// Package api is the HTTP surface of the access gateway: access decisions,
// navigation, the session role switcher, and proxied account mutations for
// the admissions dashboard.
package api
