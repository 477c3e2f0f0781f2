// Package middleware provides HTTP middleware for the access gateway:
// bearer credential extraction and request ID tagging.
package middleware
