package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"geoattend-backend/internal/session"
	"geoattend-backend/internal/sites"
	"geoattend-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sites    *sites.Provider
	sessions *session.Manager
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, provider *sites.Provider, sessions *session.Manager, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		sites:    provider,
		sessions: sessions,
		webpush:  webpushOptions,
	}
}
