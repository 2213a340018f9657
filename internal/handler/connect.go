package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/middleware"
	"github.com/dealersight/credential-server-go/internal/service"
)

// ConnectHandler exposes the provider connect flow. Initiation and the
// connection list require a session; the callback authenticates through the
// signed state alone because it arrives as a redirect from Google.
type ConnectHandler struct {
	connectService *service.ConnectService
	sessionMw      func(http.Handler) http.Handler
	rateLimitMw    func(http.Handler) http.Handler
	settingsURL    string
}

func NewConnectHandler(
	connectService *service.ConnectService,
	sessionMw func(http.Handler) http.Handler,
	rateLimitMw func(http.Handler) http.Handler,
	settingsURL string,
) *ConnectHandler {
	return &ConnectHandler{
		connectService: connectService,
		sessionMw:      sessionMw,
		rateLimitMw:    rateLimitMw,
		settingsURL:    settingsURL,
	}
}

func (h *ConnectHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{provider}/callback", h.Callback)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMw)
		r.With(h.rateLimitMw).Get("/{provider}", h.Initiate)
		r.Get("/connections", h.ListConnections)
		r.Delete("/connections/{provider}/{id}", h.Disconnect)
	})

	return r
}

func (h *ConnectHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)
	if provider == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown provider"})
		return
	}

	userCtx := middleware.GetUserContext(r.Context())

	var dealershipID *string
	if requested := r.URL.Query().Get("dealershipId"); requested != "" {
		dealershipID = &requested
	}

	authURL, err := h.connectService.AuthURL(r.Context(), provider, userCtx, dealershipID)
	if err != nil {
		switch err {
		case service.ErrProviderNotConfigured:
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "Google OAuth not configured"})
		case service.ErrNoAccessibleDealership:
			writeJSON(w, http.StatusConflict, map[string]string{"error": "No accessible dealership"})
		default:
			log.Error().Err(err).Str("provider", string(provider)).Msg("failed to generate auth URL")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to initiate connection"})
		}
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (h *ConnectHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)
	if provider == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown provider"})
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		log.Warn().Str("error", errMsg).Str("provider", string(provider)).Msg("OAuth error from provider")
		h.redirectError(w, r, "oauth_denied")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		h.redirectError(w, r, "missing_params")
		return
	}

	conn, err := h.connectService.HandleCallback(r.Context(), provider, code, state)
	if err != nil {
		log.Error().Err(err).Str("provider", string(provider)).Msg("connect callback failed")
		switch err {
		case service.ErrInvalidState:
			h.redirectError(w, r, "invalid_state")
		case service.ErrNoAccessibleDealership:
			h.redirectError(w, r, "no_accessible_dealership")
		default:
			h.redirectError(w, r, "oauth_failed")
		}
		return
	}

	log.Info().
		Str("provider", string(provider)).
		Str("connectionId", conn.ID).
		Msg("provider connected")

	http.Redirect(w, r, h.settingsURL+"?connected="+string(provider), http.StatusTemporaryRedirect)
}

func (h *ConnectHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	userCtx := middleware.GetUserContext(r.Context())

	connections, err := h.connectService.ListConnections(r.Context(), userCtx.UserID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list connections")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connections": connections,
	})
}

func (h *ConnectHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)
	if provider == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown provider"})
		return
	}

	userCtx := middleware.GetUserContext(r.Context())
	connectionID := chi.URLParam(r, "id")

	if err := h.connectService.Disconnect(r.Context(), provider, userCtx.UserID, connectionID); err != nil {
		if err == service.ErrConnectionNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Connection not found"})
			return
		}
		log.Error().Err(err).Str("connectionId", connectionID).Msg("failed to disconnect")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to disconnect"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ConnectHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.settingsURL+"?error="+code, http.StatusTemporaryRedirect)
}
