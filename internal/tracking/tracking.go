package tracking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
	"kitbuild/internal/order"
	"kitbuild/internal/progress"
)

// Link is a bearer URL token granting read-only access to one order.
type Link struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"orderId"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Store interface {
	// Insert stores a new link and its audit row.
	Insert(ctx context.Context, l Link, createdBy string) (Link, error)
	// Resolve returns the order behind an unrevoked, unexpired token.
	Resolve(ctx context.Context, token string, now time.Time) (string, error)
}

type OrderReader interface {
	Get(ctx context.Context, id string) (order.Order, error)
}

type EntryLister interface {
	ListFor(ctx context.Context, orderID string) ([]progress.Entry, error)
}

type Service struct {
	Store   Store
	Orders  OrderReader
	Entries EntryLister
	TTL     time.Duration
	Now     func() time.Time
}

func NewService(store Store, orders OrderReader, entries EntryLister, ttl time.Duration) *Service {
	return &Service{Store: store, Orders: orders, Entries: entries, TTL: ttl, Now: time.Now}
}

// Issue mints a link for an order on behalf of the system, e.g. right after
// an anonymous submission.
func (s *Service) Issue(ctx context.Context, orderID string) (string, time.Time, error) {
	l, err := s.insert(ctx, orderID, "system:tracking")
	if err != nil {
		return "", time.Time{}, err
	}
	return l.Token, l.ExpiresAt, nil
}

// Create mints a link for the order's owner or staff.
func (s *Service) Create(ctx context.Context, a actor.Actor, orderID string) (Link, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Link{}, err
	}
	if !a.IsStaff() && !a.Owns(o.ClientID) {
		return Link{}, apperr.Forbidden("not allowed to share this order")
	}
	return s.insert(ctx, orderID, a.Label())
}

func (s *Service) insert(ctx context.Context, orderID, by string) (Link, error) {
	now := s.Now().UTC()
	return s.Store.Insert(ctx, Link{
		OrderID:   orderID,
		Token:     randomHex(32),
		ExpiresAt: now.Add(s.TTL),
		CreatedAt: now,
	}, by)
}

// Summary is the public view of an order. It leaves out the client id, notes
// and any actor identity.
type Summary struct {
	Status              order.Status  `json:"status"`
	EstimatedPriceCents int64         `json:"estimatedPriceCents"`
	EstimatedDays       int           `json:"estimatedDays"`
	FinalPriceCents     *int64        `json:"finalPriceCents,omitempty"`
	FinalDays           *int          `json:"finalDays,omitempty"`
	Items               []SummaryItem `json:"items"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

type SummaryItem struct {
	ID                string  `json:"id"`
	KitName           string  `json:"kitName"`
	KitGrade          *string `json:"kitGrade,omitempty"`
	ServiceTypeID     string  `json:"serviceTypeId"`
	ComplexityLevelID string  `json:"complexityLevelId"`
	LinePriceCents    int64   `json:"linePriceCents"`
	LineDays          int     `json:"lineDays"`
}

type PublicEntry struct {
	Seq         int64         `json:"seq"`
	Kind        progress.Kind `json:"kind"`
	Message     string        `json:"message"`
	OrderItemID *string       `json:"orderItemId,omitempty"`
	PhotoRef    *string       `json:"photoRef,omitempty"`
	FromStatus  *string       `json:"fromStatus,omitempty"`
	ToStatus    *string       `json:"toStatus,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (s *Service) View(ctx context.Context, token string) (Summary, error) {
	orderID, err := s.resolve(ctx, token)
	if err != nil {
		return Summary{}, err
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(o), nil
}

func (s *Service) Progress(ctx context.Context, token string) ([]PublicEntry, error) {
	orderID, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries.ListFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]PublicEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PublicEntry{
			Seq:         e.Seq,
			Kind:        e.Kind,
			Message:     e.Message,
			OrderItemID: e.OrderItemID,
			PhotoRef:    e.PhotoRef,
			FromStatus:  e.FromStatus,
			ToStatus:    e.ToStatus,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.Validation(apperr.CodeValidationFailed, "token", "", "missing token")
	}
	return s.Store.Resolve(ctx, token, s.Now().UTC())
}

func summarize(o order.Order) Summary {
	items := make([]SummaryItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, SummaryItem{
			ID:                it.ID,
			KitName:           it.KitName,
			KitGrade:          it.KitGrade,
			ServiceTypeID:     it.ServiceTypeID,
			ComplexityLevelID: it.ComplexityLevelID,
			LinePriceCents:    it.LinePriceCents,
			LineDays:          it.LineDays,
		})
	}
	return Summary{
		Status:              o.Status,
		EstimatedPriceCents: o.EstimatedPriceCents,
		EstimatedDays:       o.EstimatedDays,
		FinalPriceCents:     o.FinalPriceCents,
		FinalDays:           o.FinalDays,
		Items:               items,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func randomHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
