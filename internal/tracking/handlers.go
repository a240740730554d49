package tracking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kitbuild/internal/api"
)

type Handlers struct {
	Service *Service
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.Create(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"link": l})
}

// View is public; the token in the path is the only credential.
func (h Handlers) View(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.View(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"order": s})
}

func (h Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Progress(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
