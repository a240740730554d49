package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/adminaction"
	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/internal/catalog"
	"kitbuild/internal/estimate"
	"kitbuild/internal/progress"
)

// CatalogSource yields the current active catalog. *catalog.Repository satisfies it.
type CatalogSource interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

type ItemsMode int

const (
	ItemsUnchanged ItemsMode = iota
	ItemsRepriced
	ItemsReplaced
)

// Write is one atomic change to an order: the order row, its items as
// selected by Items, exactly one ledger entry and the side records.
type Write struct {
	Order Order
	// ExpectedVersion is the version the change was computed from; a store
	// must reject the write with a conflict if the row has moved on.
	ExpectedVersion int64
	Items           ItemsMode
	Entry           progress.Entry
	Audit           audit.Record
	AdminAction     *adminaction.Record
}

type ListFilter struct {
	ClientID *string
	Status   *Status
	Limit    int
}

type Store interface {
	// Create stores a new order, its items and the first ledger entry atomically.
	Create(ctx context.Context, w Write) (Order, progress.Entry, error)
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	Update(ctx context.Context, w Write) (Order, progress.Entry, error)
}

type Engine struct {
	Store   Store
	Catalog CatalogSource
	Now     func() time.Time
}

func NewEngine(store Store, cat CatalogSource) *Engine {
	return &Engine{Store: store, Catalog: cat, Now: time.Now}
}

type CreateInput struct {
	Items []ItemInput `json:"items"`
	Notes string      `json:"notes"`
	// ClientID lets staff submit on behalf of a client.
	ClientID *string `json:"clientId,omitempty"`
	// Draft keeps a staff-created order in draft instead of estimated.
	Draft bool `json:"draft"`
}

const maxNotesLen = 4000

// Create prices the items against the current catalog and stores the order.
// Anonymous submissions are accepted and have no client.
func (e *Engine) Create(ctx context.Context, a actor.Actor, in CreateInput) (Order, progress.Entry, error) {
	items, err := normalizeItems(in.Items)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLen {
		return Order{}, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "notes", "", "notes are too long")
	}

	var clientID *string
	switch {
	case a.IsStaff():
		clientID = trimmedOrNil(in.ClientID)
	case a.IsClient():
		if in.ClientID != nil && *in.ClientID != a.ID {
			return Order{}, progress.Entry{}, apperr.Forbidden("clients may only submit orders for themselves")
		}
		id := a.ID
		clientID = &id
	default:
		if trimmedOrNil(in.ClientID) != nil {
			return Order{}, progress.Entry{}, apperr.Forbidden("anonymous orders cannot name a client")
		}
	}
	if in.Draft && !a.IsStaff() {
		return Order{}, progress.Entry{}, apperr.Forbidden("only staff may create draft orders")
	}

	snap, err := e.Catalog.Snapshot(ctx)
	if err != nil {
		return Order{}, progress.Entry{}, fmt.Errorf("load catalog: %w", err)
	}
	res, err := estimate.Calculate(requestsOf(items), snap)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}

	now := e.now()
	status := StatusEstimated
	if in.Draft {
		status = StatusDraft
	}
	o := Order{
		ClientID:            clientID,
		Status:              status,
		EstimatedPriceCents: res.TotalPriceCents,
		EstimatedDays:       res.TotalDays,
		Notes:               notes,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
		Items:               buildItems(items, res),
	}

	msg := fmt.Sprintf("Order submitted as %s: %d cents, %d days", status, res.TotalPriceCents, res.TotalDays)
	entry := progress.New("", progress.KindStatusChange, msg, a, now)
	entry.ToStatus = statusPtr(status)

	return e.Store.Create(ctx, Write{
		Order: o,
		Items: ItemsReplaced,
		Entry: entry,
		Audit: audit.Record{Action: audit.ActionOrderCreated, Actor: a.Label(), Metadata: map[string]any{
			"items":               len(items),
			"estimatedPriceCents": res.TotalPriceCents,
			"estimatedDays":       res.TotalDays,
		}},
	})
}

// Get returns an order visible to a.
func (e *Engine) Get(ctx context.Context, a actor.Actor, id string) (Order, error) {
	o, err := e.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !a.IsStaff() && !a.Owns(o.ClientID) {
		return Order{}, apperr.Forbidden("not allowed to view this order")
	}
	return o, nil
}

// List returns staff every order matching f and clients only their own.
func (e *Engine) List(ctx context.Context, a actor.Actor, f ListFilter) ([]Order, error) {
	switch {
	case a.IsStaff():
	case a.IsClient():
		id := a.ID
		f.ClientID = &id
	default:
		return nil, apperr.Forbidden("sign in to list orders")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return e.Store.List(ctx, f)
}

type TransitionInput struct {
	To       string         `json:"to"`
	Reason   string         `json:"reason,omitempty"`
	Note     string         `json:"note,omitempty"`
	Override *FinalOverride `json:"override,omitempty"`
	// Version, when set, must match the order's current version.
	Version *int64 `json:"version,omitempty"`
}

// Transition moves an order to in.To. Moving a draft to estimated re-runs the
// calculator against the current catalog.
func (e *Engine) Transition(ctx context.Context, a actor.Actor, id string, in TransitionInput) (Order, progress.Entry, error) {
	to, err := ParseStatus(strings.TrimSpace(in.To))
	if err != nil {
		return Order{}, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "to", in.To, "unknown status")
	}
	o, err := e.Store.Get(ctx, id)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	if in.Version != nil && *in.Version != o.Version {
		return Order{}, progress.Entry{}, apperr.Conflict("order was modified; reload and retry")
	}

	now := e.now()
	next, entry, err := Transition(o, TransitionRequest{
		To: to, Actor: a, Reason: in.Reason, Note: in.Note, Override: in.Override,
	}, now)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}

	w := Write{
		Order:           next,
		ExpectedVersion: o.Version,
		Entry:           entry,
		Audit: audit.Record{Action: audit.ActionOrderTransitioned, Actor: a.Label(), Metadata: map[string]any{
			"from": o.Status, "to": to,
		}},
	}

	if o.Status == StatusDraft && to == StatusEstimated {
		res, err := e.calculate(ctx, o.ItemRequests())
		if err != nil {
			return Order{}, progress.Entry{}, err
		}
		w.Order = applyEstimate(next, res, now)
		w.Items = ItemsRepriced
		w.Entry.Message += fmt.Sprintf(" (estimate %d cents, %d days)", res.TotalPriceCents, res.TotalDays)
	}

	if in.Override != nil {
		w.AdminAction = &adminaction.Record{
			OrderID: o.ID,
			Type:    adminaction.ActionOverrideFinalValues,
			Reason:  in.Reason,
			Actor:   a.Label(),
			Metadata: map[string]any{
				"estimatedPriceCents": o.EstimatedPriceCents,
				"estimatedDays":       o.EstimatedDays,
				"finalPriceCents":     in.Override.PriceCents,
				"finalDays":           in.Override.Days,
			},
		}
	}

	return e.Store.Update(ctx, w)
}

// Reestimate re-prices the stored items against the current catalog. It only
// ever touches the estimate fields.
func (e *Engine) Reestimate(ctx context.Context, a actor.Actor, id string) (Order, progress.Entry, error) {
	o, err := e.Store.Get(ctx, id)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	// A locked order reports the lock rather than a stale catalog reference.
	if err := canReestimate(o, a); err != nil {
		return Order{}, progress.Entry{}, err
	}

	res, err := e.calculate(ctx, o.ItemRequests())
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	next, entry, err := Reestimate(o, res, a, e.now())
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	return e.Store.Update(ctx, Write{
		Order:           next,
		ExpectedVersion: o.Version,
		Items:           ItemsRepriced,
		Entry:           entry,
		Audit: audit.Record{Action: audit.ActionOrderReestimated, Actor: a.Label(), Metadata: map[string]any{
			"previousPriceCents": o.EstimatedPriceCents,
			"previousDays":       o.EstimatedDays,
			"priceCents":         res.TotalPriceCents,
			"days":               res.TotalDays,
		}},
	})
}

// ReplaceItems deletes and recreates the items of a draft order.
func (e *Engine) ReplaceItems(ctx context.Context, a actor.Actor, id string, in []ItemInput) (Order, progress.Entry, error) {
	if !a.IsStaff() {
		return Order{}, progress.Entry{}, apperr.Forbidden("only staff may replace order items")
	}
	items, err := normalizeItems(in)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	o, err := e.Store.Get(ctx, id)
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	if o.Status != StatusDraft {
		return Order{}, progress.Entry{}, apperr.State(apperr.CodeItemsLocked, "items can only be replaced while the order is a draft; open a change request instead")
	}

	res, err := e.calculate(ctx, requestsOf(items))
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	next, entry, err := ReplaceItems(o, buildItems(items, res), res, a, e.now())
	if err != nil {
		return Order{}, progress.Entry{}, err
	}
	return e.Store.Update(ctx, Write{
		Order:           next,
		ExpectedVersion: o.Version,
		Items:           ItemsReplaced,
		Entry:           entry,
		Audit: audit.Record{Action: audit.ActionOrderItemsReplaced, Actor: a.Label(), Metadata: map[string]any{
			"items": len(items), "priceCents": res.TotalPriceCents, "days": res.TotalDays,
		}},
	})
}

func (e *Engine) calculate(ctx context.Context, items []estimate.ItemRequest) (estimate.Result, error) {
	snap, err := e.Catalog.Snapshot(ctx)
	if err != nil {
		return estimate.Result{}, fmt.Errorf("load catalog: %w", err)
	}
	return estimate.Calculate(items, snap)
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
