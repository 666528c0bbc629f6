// Package jwt signs and verifies the paired access/refresh bearer
// tokens used by goSession. It is purely stateless: everything stateful
// (session records, rotation, blacklist, revocation) lives above it.
package jwt
