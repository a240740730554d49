package progress

import (
	"context"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
)

// Store persists ledger entries. *Repository satisfies it.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	ListFor(ctx context.Context, orderID string) ([]Entry, error)
	OrderOwner(ctx context.Context, orderID string) (*string, error)
}

// Ledger is the public contract of an order's progress trail: append and list.
// There is no update or delete.
type Ledger struct {
	Store Store
	Now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Append records a note on the order. Staff may annotate any order; a client
// only their own.
func (l *Ledger) Append(ctx context.Context, a actor.Actor, in AppendInput) (Entry, error) {
	if err := in.normalize(); err != nil {
		return Entry{}, err
	}
	if err := l.authorize(ctx, a, in.OrderID); err != nil {
		return Entry{}, err
	}

	e := New(in.OrderID, KindNote, in.Message, a, l.Now())
	e.PhotoRef = in.PhotoRef
	e.OrderItemID = in.OrderItemID
	return l.Store.Append(ctx, e)
}

// ListFor returns the order's entries oldest first.
func (l *Ledger) ListFor(ctx context.Context, a actor.Actor, orderID string) ([]Entry, error) {
	if err := l.authorize(ctx, a, orderID); err != nil {
		return nil, err
	}
	return l.Store.ListFor(ctx, orderID)
}

func (l *Ledger) authorize(ctx context.Context, a actor.Actor, orderID string) error {
	owner, err := l.Store.OrderOwner(ctx, orderID)
	if err != nil {
		return err
	}
	if a.IsStaff() || a.Owns(owner) {
		return nil
	}
	return apperr.Forbidden("not allowed to access this order's progress")
}
