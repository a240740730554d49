package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"kitbuild/internal/api"
	"kitbuild/internal/audit"
)

// Store is the persistence the catalog handlers need. *Repository satisfies it.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Full(ctx context.Context) (Snapshot, error)
	SaveServiceType(ctx context.Context, st ServiceType) (*ServiceType, error)
	SaveComplexityLevel(ctx context.Context, cl ComplexityLevel) (*ComplexityLevel, error)
	SaveAddOn(ctx context.Context, a AddOn) (*AddOn, error)
	Deactivate(ctx context.Context, kind Kind, id string) error
}

// Auditor records admin writes. *audit.Repository satisfies it.
type Auditor interface {
	Record(ctx context.Context, rec audit.Record) error
}

type Handlers struct {
	Catalog Store
	Audit   Auditor
}

// Public returns the active catalog used for quoting.
func (h Handlers) Public(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

// Admin returns every catalog row, inactive ones included.
func (h Handlers) Admin(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Catalog.Full(r.Context())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

func (h Handlers) SaveServiceType(w http.ResponseWriter, r *http.Request) {
	var st ServiceType
	if err := api.DecodeJSON(r, &st); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	st.ID = chi.URLParam(r, "id")
	if st.ID == "" {
		st.Active = true
	}
	if err := st.Normalize(); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	saved, err := h.Catalog.SaveServiceType(r.Context(), st)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	h.record(r, audit.ActionCatalogSaved, KindServiceType, saved.ID)
	api.WriteJSON(w, savedStatus(st.ID), map[string]any{"serviceType": saved})
}

func (h Handlers) SaveComplexityLevel(w http.ResponseWriter, r *http.Request) {
	var cl ComplexityLevel
	if err := api.DecodeJSON(r, &cl); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	cl.ID = chi.URLParam(r, "id")
	if cl.ID == "" {
		cl.Active = true
	}
	if err := cl.Normalize(); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	saved, err := h.Catalog.SaveComplexityLevel(r.Context(), cl)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	h.record(r, audit.ActionCatalogSaved, KindComplexityLevel, saved.ID)
	api.WriteJSON(w, savedStatus(cl.ID), map[string]any{"complexityLevel": saved})
}

func (h Handlers) SaveAddOn(w http.ResponseWriter, r *http.Request) {
	var a AddOn
	if err := api.DecodeJSON(r, &a); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "id")
	if a.ID == "" {
		a.Active = true
	}
	if err := a.Normalize(); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	saved, err := h.Catalog.SaveAddOn(r.Context(), a)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	h.record(r, audit.ActionCatalogSaved, KindAddOn, saved.ID)
	api.WriteJSON(w, savedStatus(a.ID), map[string]any{"addOn": saved})
}

// Deactivate returns a handler that soft-deletes rows of the given kind.
func (h Handlers) Deactivate(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.Catalog.Deactivate(r.Context(), kind, id); err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		h.record(r, audit.ActionCatalogDeactivated, kind, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func savedStatus(id string) int {
	if id == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}

// record is best effort: the catalog write has already committed.
func (h Handlers) record(r *http.Request, action string, kind Kind, id string) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), audit.Record{
		Action:   action,
		Actor:    api.ActorFromContext(r.Context()).Label(),
		Metadata: map[string]any{"kind": kind, "id": id},
	})
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("action", action).Msg("catalog audit failed")
	}
}
