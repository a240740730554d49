package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"kitbuild/internal/api"
	"kitbuild/internal/apperr"
)

// LinkIssuer hands out public tracking links. Anonymous submitters get one in
// the create response since they have no other way back to their order.
type LinkIssuer interface {
	Issue(ctx context.Context, orderID string) (token string, expiresAt time.Time, err error)
}

type Handlers struct {
	Engine *Engine
	Links  LinkIssuer
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	a := api.ActorFromContext(r.Context())

	o, entry, err := h.Engine.Create(r.Context(), a, in)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	resp := map[string]any{"order": o, "entry": entry}
	if o.ClientID == nil && h.Links != nil {
		tok, exp, err := h.Links.Issue(r.Context(), o.ID)
		if err != nil {
			// The order exists; staff can still issue a link later.
			hlog.FromRequest(r).Error().Err(err).Str("order_id", o.ID).Msg("issue tracking link failed")
		} else {
			resp["tracking"] = map[string]any{"token": tok, "expiresAt": exp}
		}
	}
	api.WriteJSON(w, http.StatusCreated, resp)
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	var f ListFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			api.WriteAppError(w, r, apperr.Validation(apperr.CodeValidationFailed, "status", s, "unknown status"))
			return
		}
		f.Status = &st
	}
	if s := q.Get("clientId"); s != "" {
		f.ClientID = &s
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			api.WriteAppError(w, r, apperr.Validation(apperr.CodeValidationFailed, "limit", s, "limit must be a number"))
			return
		}
		f.Limit = n
	}

	items, err := h.Engine.List(r.Context(), api.ActorFromContext(r.Context()), f)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.Get(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"order":          o,
		"allowedTargets": AllowedTargets(o.Status),
	})
}

func (h Handlers) Transition(w http.ResponseWriter, r *http.Request) {
	var in TransitionInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	o, entry, err := h.Engine.Transition(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"order": o, "entry": entry})
}

func (h Handlers) Reestimate(w http.ResponseWriter, r *http.Request) {
	o, entry, err := h.Engine.Reestimate(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"order": o, "entry": entry})
}

type ReplaceItemsRequest struct {
	Items []ItemInput `json:"items"`
}

func (h Handlers) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	o, entry, err := h.Engine.ReplaceItems(r.Context(), api.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Items)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"order": o, "entry": entry})
}
