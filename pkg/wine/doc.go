// Package wine holds the club's wine catalogue: the record model and its
// persistence stores. Records live in a remote document database; the
// in-memory store backs tests and local development.
//
// Catalogue mutations are deliberately independent of the auth-gating
// subsystem: only screen rendering is gated, never data operations.
package wine
