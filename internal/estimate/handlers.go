package estimate

import (
	"context"
	"net/http"

	"kitbuild/internal/api"
	"kitbuild/internal/apperr"
	"kitbuild/internal/catalog"
)

// CatalogSource yields the current active catalog. *catalog.Repository satisfies it.
type CatalogSource interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

type Handlers struct {
	Catalog CatalogSource
	Workers int
}

type QuoteRequest struct {
	Items []ItemRequest `json:"items"`
}

type BatchRequest struct {
	Carts []QuoteRequest `json:"carts"`
}

type batchEntry struct {
	Estimate *Result      `json:"estimate,omitempty"`
	Error    *api.APIError `json:"error,omitempty"`
}

const maxBatchCarts = 200

// Quote prices a cart without creating an order.
func (h Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	res, err := Calculate(req.Items, snap)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"estimate": res})
}

// QuoteBatch prices many carts against one catalog snapshot.
func (h Handlers) QuoteBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if len(req.Carts) == 0 || len(req.Carts) > maxBatchCarts {
		api.WriteAppError(w, r, apperr.Validation(apperr.CodeValidationFailed, "carts", "", "between 1 and 200 carts are required"))
		return
	}
	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	carts := make([][]ItemRequest, len(req.Carts))
	for i, c := range req.Carts {
		carts[i] = c.Items
	}
	results, err := CalculateBatch(r.Context(), carts, snap, h.Workers)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	out := make([]batchEntry, len(results))
	for i, br := range results {
		if br.Err != nil {
			body, _ := api.ErrorBody(br.Err)
			out[i] = batchEntry{Error: &body}
			continue
		}
		out[i] = batchEntry{Estimate: br.Result}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"results": out})
}
