// Package middleware provides HTTP middleware for the observability
// listener: request logging with log-injection hardening.
package middleware
