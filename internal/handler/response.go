package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealersight/credential-server-go/internal/httputil"
	"github.com/dealersight/credential-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// providerParam parses the {provider} route segment. Returns "" when the
// segment names no known provider.
func providerParam(r *http.Request) model.Provider {
	p := model.Provider(chi.URLParam(r, "provider"))
	if !p.Valid() {
		return ""
	}
	return p
}
