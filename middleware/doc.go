// Package middleware provides net/http handler wrappers over a
// gosession Engine: RequireAuth for bearer-token verification and
// RequireRole for coarse role gating on top of it.
package middleware
