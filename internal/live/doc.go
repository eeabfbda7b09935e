// Package live runs one session per WebSocket connection. Each session
// is owned by a single goroutine: client frames and auth state
// transitions are funneled into one queue, every navigation passes
// through the route gate before anything renders, and the auth listener
// is torn down with the connection.
package live
