package progress

import (
	"strings"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
)

type Kind string

const (
	KindStatusChange  Kind = "status_change"
	KindNote          Kind = "note"
	KindChangeRequest Kind = "change_request"
	KindEstimate      Kind = "estimate"
)

// Entry is one row of an order's ledger. Entries are never updated or deleted;
// Seq is assigned on insert and is strictly increasing per order.
type Entry struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	OrderItemID *string   `json:"orderItemId,omitempty"`
	Seq         int64     `json:"seq"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	PhotoRef    *string   `json:"photoRef,omitempty"`
	FromStatus  *string   `json:"fromStatus,omitempty"`
	ToStatus    *string   `json:"toStatus,omitempty"`
	Actor       string    `json:"actor"`
	ActorRole   string    `json:"actorRole"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New builds an unsaved entry attributed to a.
func New(orderID string, kind Kind, message string, a actor.Actor, at time.Time) Entry {
	return Entry{
		OrderID:   orderID,
		Kind:      kind,
		Message:   message,
		Actor:     a.Label(),
		ActorRole: string(a.Role),
		CreatedAt: at.UTC(),
	}
}

// AppendInput is a free-form note added to an order's timeline.
type AppendInput struct {
	OrderID     string  `json:"-"`
	Message     string  `json:"message"`
	PhotoRef    *string `json:"photoRef,omitempty"`
	OrderItemID *string `json:"orderItemId,omitempty"`
}

const maxMessageLen = 4000

func (in *AppendInput) normalize() error {
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return apperr.Validation(apperr.CodeValidationFailed, "message", "", "message is required")
	}
	if len(in.Message) > maxMessageLen {
		return apperr.Validation(apperr.CodeValidationFailed, "message", "", "message is too long")
	}
	in.PhotoRef = trimmedOrNil(in.PhotoRef)
	in.OrderItemID = trimmedOrNil(in.OrderItemID)
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
