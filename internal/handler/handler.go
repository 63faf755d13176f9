// Package handler translates HTTP requests into store operations guarded by
// the authorization policy. Each handler resolves the actor from the
// context, checks existence before permission (401, then 404, then 403) and
// serializes safe projections only.
package handler

import (
	"caltrack/internal/session"
	"caltrack/internal/store"
)

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	store     *store.Store
	sessions  *session.Manager
	indexPath string
}

// New creates a Handler.
func New(st *store.Store, sessions *session.Manager, indexPath string) *Handler {
	return &Handler{store: st, sessions: sessions, indexPath: indexPath}
}
