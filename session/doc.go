// Package session persists refresh-token families and implements the
// atomic compare-and-rotate primitive that the rotation protocol
// depends on. Two backends are provided: Redis (hash per family, Lua
// scripts for atomicity) and Postgres (row locks inside transactions).
package session
