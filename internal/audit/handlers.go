package audit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kitbuild/internal/api"
)

type Lister interface {
	ListByOrder(ctx context.Context, orderID string) ([]Entry, error)
}

// Handlers expose the audit trail to staff. Authorization is enforced by the
// router.
type Handlers struct {
	Audit Lister
}

func (h Handlers) ListByOrder(w http.ResponseWriter, r *http.Request) {
	items, err := h.Audit.ListByOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
