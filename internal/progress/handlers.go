package progress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kitbuild/internal/api"
)

type Handlers struct {
	Ledger *Ledger
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.ListFor(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h Handlers) Append(w http.ResponseWriter, r *http.Request) {
	var in AppendInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	in.OrderID = chi.URLParam(r, "id")

	e, err := h.Ledger.Append(r.Context(), api.ActorFromContext(r.Context()), in)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"entry": e})
}
