// Package api provides the HTTP surface of the chatbot service.
//
// Routes:
//
//	POST /chat         advance the conversation for a phone number
//	GET  /             embedded single-page chat client
//	GET  /favicon.ico  204, no body
//	GET  /health       liveness probe
//	GET  /ready        readiness probe (pings the database pool)
//
// Every /chat outcome, success or failure, is a JSON body shaped
// {"user_phone": <best-effort echo>, "bot_message": <text>}. Faults are
// mapped to fixed user-visible messages at this boundary; internal
// detail is logged, never returned to the client.
//
// File structure:
//   - server.go: route wiring and middleware stack
//   - chat.go: the /chat handler and its validation ladder
//   - response.go: JSON response helpers
//   - middleware.go: recovery, request ID, request logging
//   - ratelimit.go: per-IP token bucket
//   - health.go: probes
//   - pages.go: embedded client page and favicon
package api
