package changerequest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
	"kitbuild/internal/progress"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// ChangeRequest asks for an amendment to an order. It never changes the price
// by itself; staff apply any resulting item change separately.
type ChangeRequest struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"orderId"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	RequestedBy    string     `json:"requestedBy"`
	ResolutionNote *string    `json:"resolutionNote,omitempty"`
	ResolvedBy     *string    `json:"resolvedBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// OrderRef is the slice of an order this package needs for authorization.
type OrderRef struct {
	ClientID *string
	Status   string
}

// checkOpen fails once the order is terminal. Stores repeat it under the
// order lock so a concurrent cancel cannot slip in between.
func (r OrderRef) checkOpen() error {
	if r.Status == "completed" || r.Status == "cancelled" {
		return apperr.State(apperr.CodeOrderClosed, "order is "+r.Status+"; changes can no longer be requested")
	}
	return nil
}

type Store interface {
	OrderRef(ctx context.Context, orderID string) (OrderRef, error)
	Get(ctx context.Context, id string) (ChangeRequest, error)
	ListByOrder(ctx context.Context, orderID string) ([]ChangeRequest, error)
	// Create stores cr and its ledger entry atomically, re-checking under the
	// order lock that the order is still open.
	Create(ctx context.Context, cr ChangeRequest, e progress.Entry) (ChangeRequest, progress.Entry, error)
	// Close moves an open request to its final status with its ledger entry, or
	// fails with a conflict when it is no longer open.
	Close(ctx context.Context, cr ChangeRequest, e progress.Entry) (ChangeRequest, progress.Entry, error)
}

type Service struct {
	Store Store
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

const maxDescriptionLen = 4000

func (s *Service) Open(ctx context.Context, a actor.Actor, orderID, description string) (ChangeRequest, progress.Entry, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return ChangeRequest{}, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "description", "", "description is required")
	}
	if len(description) > maxDescriptionLen {
		return ChangeRequest{}, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "description", "", "description is too long")
	}
	ref, err := s.authorize(ctx, a, orderID)
	if err != nil {
		return ChangeRequest{}, progress.Entry{}, err
	}
	if err := ref.checkOpen(); err != nil {
		return ChangeRequest{}, progress.Entry{}, err
	}

	now := s.Now().UTC()
	cr := ChangeRequest{
		OrderID:     orderID,
		Description: description,
		Status:      StatusOpen,
		RequestedBy: a.Label(),
		CreatedAt:   now,
	}
	e := progress.New(orderID, progress.KindChangeRequest, "Change requested: "+description, a, now)
	return s.Store.Create(ctx, cr, e)
}

func (s *Service) Resolve(ctx context.Context, a actor.Actor, id, note string) (ChangeRequest, progress.Entry, error) {
	return s.close(ctx, a, id, StatusResolved, note)
}

func (s *Service) Reject(ctx context.Context, a actor.Actor, id, note string) (ChangeRequest, progress.Entry, error) {
	return s.close(ctx, a, id, StatusRejected, note)
}

func (s *Service) close(ctx context.Context, a actor.Actor, id string, to Status, note string) (ChangeRequest, progress.Entry, error) {
	if !a.IsStaff() {
		return ChangeRequest{}, progress.Entry{}, apperr.Forbidden("only staff may close change requests")
	}
	cr, err := s.Store.Get(ctx, id)
	if err != nil {
		return ChangeRequest{}, progress.Entry{}, err
	}
	if cr.Status != StatusOpen {
		return ChangeRequest{}, progress.Entry{}, apperr.State(apperr.CodeChangeRequestClosed, "change request is already "+string(cr.Status))
	}

	now := s.Now().UTC()
	cr.Status = to
	cr.ResolvedAt = &now
	by := a.Label()
	cr.ResolvedBy = &by
	msg := fmt.Sprintf("Change request %s", to)
	if note = strings.TrimSpace(note); note != "" {
		cr.ResolutionNote = &note
		msg += ": " + note
	}
	e := progress.New(cr.OrderID, progress.KindChangeRequest, msg, a, now)
	return s.Store.Close(ctx, cr, e)
}

func (s *Service) List(ctx context.Context, a actor.Actor, orderID string) ([]ChangeRequest, error) {
	if _, err := s.authorize(ctx, a, orderID); err != nil {
		return nil, err
	}
	return s.Store.ListByOrder(ctx, orderID)
}

func (s *Service) authorize(ctx context.Context, a actor.Actor, orderID string) (OrderRef, error) {
	ref, err := s.Store.OrderRef(ctx, orderID)
	if err != nil {
		return OrderRef{}, err
	}
	if !a.IsStaff() && !a.Owns(ref.ClientID) {
		return OrderRef{}, apperr.Forbidden("not allowed to access this order's change requests")
	}
	return ref, nil
}
