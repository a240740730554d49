package order

import (
	"strconv"
	"strings"
	"time"

	"kitbuild/internal/apperr"
	"kitbuild/internal/estimate"
)

type Order struct {
	ID                  string    `json:"id"`
	ClientID            *string   `json:"clientId,omitempty"`
	Status              Status    `json:"status"`
	EstimatedPriceCents int64     `json:"estimatedPriceCents"`
	EstimatedDays       int       `json:"estimatedDays"`
	FinalPriceCents     *int64    `json:"finalPriceCents"`
	FinalDays           *int      `json:"finalDays"`
	Notes               string    `json:"notes"`
	Version             int64     `json:"version"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	Items               []Item    `json:"items"`
}

// Item is one kit in an order. The line price and days are the values the
// last estimate assigned to it.
type Item struct {
	ID                string   `json:"id"`
	OrderID           string   `json:"orderId"`
	KitName           string   `json:"kitName"`
	KitGrade          *string  `json:"kitGrade,omitempty"`
	ServiceTypeID     string   `json:"serviceTypeId"`
	ComplexityLevelID string   `json:"complexityLevelId"`
	Notes             *string  `json:"notes,omitempty"`
	AddOnIDs          []string `json:"addOnIds"`
	SortOrder         int      `json:"sortOrder"`
	LinePriceCents    int64    `json:"linePriceCents"`
	LineDays          int      `json:"lineDays"`
}

// ItemInput is a kit as submitted at intake.
type ItemInput struct {
	KitName  string  `json:"kitName"`
	KitGrade *string `json:"kitGrade,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	estimate.ItemRequest
}

func (o Order) HasFinalValues() bool {
	return o.FinalPriceCents != nil
}

// ItemRequests re-derives calculator input from stored items.
func (o Order) ItemRequests() []estimate.ItemRequest {
	out := make([]estimate.ItemRequest, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, estimate.ItemRequest{
			ServiceType:     it.ServiceTypeID,
			ComplexityLevel: it.ComplexityLevelID,
			AddOnIDs:        append([]string(nil), it.AddOnIDs...),
		})
	}
	return out
}

const (
	maxItems      = 50
	maxKitNameLen = 200
)

func normalizeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, apperr.Validation(apperr.CodeEmptyOrder, "items", "", "at least one item is required")
	}
	if len(in) > maxItems {
		return nil, apperr.Validation(apperr.CodeValidationFailed, "items", "", "too many items")
	}
	out := make([]ItemInput, len(in))
	for i, it := range in {
		it.KitName = strings.TrimSpace(it.KitName)
		if it.KitName == "" {
			return nil, apperr.Validation(apperr.CodeValidationFailed, fieldf(i, "kitName"), "", "kit name is required")
		}
		if len(it.KitName) > maxKitNameLen {
			return nil, apperr.Validation(apperr.CodeValidationFailed, fieldf(i, "kitName"), "", "kit name is too long")
		}
		it.KitGrade = trimmedOrNil(it.KitGrade)
		it.Notes = trimmedOrNil(it.Notes)
		it.AddOnIDs = dedupe(it.AddOnIDs)
		out[i] = it
	}
	return out, nil
}

// buildItems pairs validated inputs with their priced lines.
func buildItems(in []ItemInput, res estimate.Result) []Item {
	items := make([]Item, len(in))
	for i, it := range in {
		line := res.LineItems[i]
		items[i] = Item{
			KitName:           it.KitName,
			KitGrade:          it.KitGrade,
			ServiceTypeID:     line.ServiceTypeID,
			ComplexityLevelID: line.ComplexityLevelID,
			Notes:             it.Notes,
			AddOnIDs:          it.AddOnIDs,
			SortOrder:         i,
			LinePriceCents:    line.PriceCents,
			LineDays:          line.Days,
		}
	}
	return items
}

func requestsOf(in []ItemInput) []estimate.ItemRequest {
	out := make([]estimate.ItemRequest, len(in))
	for i, it := range in {
		out[i] = it.ItemRequest
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
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

func fieldf(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}
