package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/audit"
	"github.com/dealersight/credential-server-go/internal/model"
)

type integrityScanner interface {
	Scan(ctx context.Context, provider model.Provider, autoFix bool) (*model.IntegrityReport, error)
	ScanAll(ctx context.Context, autoFix bool) (*model.IntegrityReport, error)
	ScanUser(ctx context.Context, userID string, autoFix bool) (*model.IntegrityReport, error)
}

// AdminHandler exposes the integrity scan surface to operators.
type AdminHandler struct {
	auditor integrityScanner
	authMw  func(http.Handler) http.Handler
}

func NewAdminHandler(auditor integrityScanner, authMw func(http.Handler) http.Handler) *AdminHandler {
	return &AdminHandler{auditor: auditor, authMw: authMw}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.authMw)
	r.Post("/integrity/scan", h.Scan)
	r.Post("/integrity/users/{userID}/scan", h.ScanUser)

	return r
}

// Scan runs an integrity sweep over one provider, or both when no provider
// is given. Repair only happens with autofix=true.
func (h *AdminHandler) Scan(w http.ResponseWriter, r *http.Request) {
	autoFix := r.URL.Query().Get("autofix") == "true"

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventIntegrityScan,
		Details: map[string]interface{}{"autofix": autoFix, "scope": "all"},
	})

	var report *model.IntegrityReport
	var err error

	if p := r.URL.Query().Get("provider"); p != "" {
		provider := model.Provider(p)
		if !provider.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown provider"})
			return
		}
		report, err = h.auditor.Scan(r.Context(), provider, autoFix)
	} else {
		report, err = h.auditor.ScanAll(r.Context(), autoFix)
	}

	if err != nil {
		log.Error().Err(err).Msg("integrity scan failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Integrity scan failed"})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) ScanUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	autoFix := r.URL.Query().Get("autofix") == "true"

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventIntegrityScan,
		UserID:  userID,
		Details: map[string]interface{}{"autofix": autoFix, "scope": "user"},
	})

	report, err := h.auditor.ScanUser(r.Context(), userID, autoFix)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("user integrity scan failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Integrity scan failed"})
		return
	}

	writeJSON(w, http.StatusOK, report)
}
