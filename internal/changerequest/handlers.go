package changerequest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kitbuild/internal/actor"
	"kitbuild/internal/api"
	"kitbuild/internal/progress"
)

type Handlers struct {
	Service *Service
}

type openRequest struct {
	Description string `json:"description"`
}

type closeRequest struct {
	Note string `json:"note"`
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	cr, entry, err := h.Service.Open(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"changeRequest": cr, "entry": entry})
}

func (h Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Service.Resolve)
}

func (h Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Service.Reject)
}

type closeFunc func(ctx context.Context, a actor.Actor, id, note string) (ChangeRequest, progress.Entry, error)

func (h Handlers) settle(w http.ResponseWriter, r *http.Request, fn closeFunc) {
	var req closeRequest
	// An empty body means no note.
	if r.ContentLength != 0 {
		if err := api.DecodeJSON(r, &req); err != nil {
			api.WriteAppError(w, r, err)
			return
		}
	}
	cr, entry, err := fn(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"changeRequest": cr, "entry": entry})
}
