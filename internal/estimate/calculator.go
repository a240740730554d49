package estimate

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"kitbuild/internal/apperr"
	"kitbuild/internal/catalog"
)

// ItemRequest is one requested build, priced as quantity 1. ServiceType and
// ComplexityLevel accept either a catalog id or a slug.
type ItemRequest struct {
	ServiceType     string   `json:"serviceType"`
	ComplexityLevel string   `json:"complexityLevel"`
	AddOnIDs        []string `json:"addOnIds,omitempty"`
}

type AddOnCharge struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Required   bool   `json:"required"`
}

type LineItem struct {
	ServiceTypeID     string          `json:"serviceTypeId"`
	ComplexityLevelID string          `json:"complexityLevelId"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	BasePriceCents    int64           `json:"basePriceCents"`
	ScaledPriceCents  int64           `json:"scaledPriceCents"`
	AddOns            []AddOnCharge   `json:"addOns"`
	AddOnsCents       int64           `json:"addOnsCents"`
	PriceCents        int64           `json:"priceCents"`
	BaseDays          int             `json:"baseDays"`
	Days              int             `json:"days"`
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	maxDays  = decimal.NewFromInt(math.MaxInt32)
)

type Result struct {
	TotalPriceCents int64      `json:"totalPriceCents"`
	TotalDays       int        `json:"totalDays"`
	LineItems       []LineItem `json:"lineItems"`
}

// Calculate prices items against snap.
//
// Rules:
// - Scaled price = base price × multiplier, rounded half-up to the minor unit.
// - Line days = base days × multiplier, rounded up to a whole day.
// - Every active required add-on of the item's service type is charged once,
//   plus each selected add-on once; selecting a required add-on does not charge it twice.
// - Totals are the sum over lines; kits are built one after another, so days add up.
//
// Calculate performs no I/O and is safe for concurrent use.
func Calculate(items []ItemRequest, snap catalog.Snapshot) (Result, error) {
	if len(items) == 0 {
		return Result{}, apperr.Validation(apperr.CodeEmptyOrder, "items", "", "at least one item is required")
	}

	res := Result{LineItems: make([]LineItem, 0, len(items))}
	totalPrice, totalDays := decimal.Zero, decimal.Zero
	for i, it := range items {
		line, err := priceLine(i, it, snap)
		if err != nil {
			return Result{}, err
		}
		res.LineItems = append(res.LineItems, line)
		totalPrice = totalPrice.Add(decimal.NewFromInt(line.PriceCents))
		totalDays = totalDays.Add(decimal.NewFromInt(int64(line.Days)))
	}
	if err := checkRange("items", totalPrice, totalDays); err != nil {
		return Result{}, err
	}
	res.TotalPriceCents = totalPrice.IntPart()
	res.TotalDays = int(totalDays.IntPart())
	return res, nil
}

// checkRange rejects amounts that do not fit the int64 price and int32 day
// columns an estimate is persisted into.
func checkRange(field string, price, days decimal.Decimal) error {
	if price.GreaterThan(maxCents) {
		return apperr.Validation(apperr.CodeValidationFailed, field, price.String(), "estimated price is too large")
	}
	if days.GreaterThan(maxDays) {
		return apperr.Validation(apperr.CodeValidationFailed, field, days.String(), "estimated duration is too long")
	}
	return nil
}

func priceLine(i int, it ItemRequest, snap catalog.Snapshot) (LineItem, error) {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

	stRef := strings.TrimSpace(it.ServiceType)
	if stRef == "" {
		return LineItem{}, apperr.Validation(apperr.CodeValidationFailed, field("serviceType"), "", "service type is required")
	}
	st, ok := snap.ServiceType(stRef)
	if !ok || !st.Active {
		return LineItem{}, apperr.Reference(apperr.CodeUnknownServiceType, field("serviceType"), stRef, "unknown or inactive service type")
	}

	clRef := strings.TrimSpace(it.ComplexityLevel)
	if clRef == "" {
		return LineItem{}, apperr.Validation(apperr.CodeValidationFailed, field("complexityLevel"), "", "complexity level is required")
	}
	cl, ok := snap.ComplexityLevel(clRef)
	if !ok || !cl.Active {
		return LineItem{}, apperr.Reference(apperr.CodeUnknownComplexityLevel, field("complexityLevel"), clRef, "unknown or inactive complexity level")
	}

	selected := make(map[string]bool, len(it.AddOnIDs))
	for _, id := range it.AddOnIDs {
		a, ok := snap.AddOn(id)
		if !ok || !a.Active || a.ServiceTypeID != st.ID {
			return LineItem{}, apperr.Validation(apperr.CodeInvalidAddOn, field("addOnIds"), id, "add-on is not available for service type "+st.Slug)
		}
		selected[id] = true
	}

	scaled := ScalePrice(st.BasePriceCents, cl.Multiplier)
	days := ScaleDays(st.BaseDays, cl.Multiplier)
	addOns := decimal.Zero
	charges := []AddOnCharge{}
	for _, a := range snap.AddOnsFor(st.ID) {
		if !a.Active || !(a.Required || selected[a.ID]) {
			continue
		}
		charges = append(charges, AddOnCharge{ID: a.ID, Name: a.Name, PriceCents: a.PriceCents, Required: a.Required})
		addOns = addOns.Add(decimal.NewFromInt(a.PriceCents))
	}
	price := scaled.Add(addOns)
	if err := checkRange(field("serviceType"), price, days); err != nil {
		return LineItem{}, err
	}

	return LineItem{
		ServiceTypeID:     st.ID,
		ComplexityLevelID: cl.ID,
		Multiplier:        cl.Multiplier,
		BasePriceCents:    st.BasePriceCents,
		ScaledPriceCents:  scaled.IntPart(),
		AddOns:            charges,
		AddOnsCents:       addOns.IntPart(),
		PriceCents:        price.IntPart(),
		BaseDays:          st.BaseDays,
		Days:              int(days.IntPart()),
	}, nil
}

// ScalePrice multiplies a minor-unit amount, rounding half-up.
func ScalePrice(cents int64, multiplier decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(cents).Mul(multiplier).Round(0)
}

// ScaleDays multiplies a duration, rounding any partial day up.
func ScaleDays(days int, multiplier decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(days)).Mul(multiplier).Ceil()
}
