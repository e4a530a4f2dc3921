// Package proxy implements the Endpoint Pool: a fixed rotation of validated
// outbound HTTP proxies shared by every in-flight request.
//
// The pool:
//   - Hands out endpoints in FIFO order (longest-idle first)
//   - Blocks Acquire until an endpoint is released or the context ends
//   - Never fabricates endpoints; Release only accepts checked-out ones
//   - Records blocked signals per endpoint, with optional retirement
//
// Acquire has no built-in deadline. Callers that need a bounded wait pass a
// context with a timeout.
package proxy
