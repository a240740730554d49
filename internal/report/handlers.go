package report

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kitbuild/internal/actor"
	"kitbuild/internal/api"
	"kitbuild/internal/order"
	"kitbuild/internal/progress"
)

type OrderReader interface {
	Get(ctx context.Context, a actor.Actor, id string) (order.Order, error)
}

type LedgerReader interface {
	ListFor(ctx context.Context, a actor.Actor, orderID string) ([]progress.Entry, error)
}

type Handlers struct {
	Orders    OrderReader
	Ledger    LedgerReader
	Generator *Generator
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	a := api.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	o, err := h.Orders.Get(r.Context(), a, id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	entries, err := h.Ledger.ListFor(r.Context(), a, id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	data, err := h.Generator.Generate(o, entries)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="order-%s.xlsx"`, o.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
