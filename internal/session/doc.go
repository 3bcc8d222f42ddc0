// Package session provides persistence for per-user conversation sessions.
//
// One row exists per phone number. Creation is idempotent: GetOrCreate
// either returns the committed row or inserts a fresh one in state
// initial, and a concurrent creator for the same number never surfaces
// a duplicate-key error. Updates touch exactly one row and refresh the
// last_interaction timestamp.
//
// The stored conversation_state column is returned raw; callers parse it
// with ParseState so a corrupted value is detected at the request
// boundary rather than inside the store.
package session
