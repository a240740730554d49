package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"kitbuild/internal/apperr"
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Upper bounds mirror the CHECK constraints on the catalog tables.
const (
	MaxPriceCents int64 = 100_000_000_000
	MaxBaseDays         = 3650

	multiplierScale = 3
	multiplierLimit = "999.999"
)

var maxMultiplier = decimal.RequireFromString(multiplierLimit)

// Normalize trims free-text fields and validates the admin-supplied entity.
// Catalog rows are validated once here, at the boundary, so the calculator can
// trust every field it reads.
func (st *ServiceType) Normalize() error {
	st.Slug = strings.TrimSpace(st.Slug)
	st.Name = strings.TrimSpace(st.Name)
	if !slugRe.MatchString(st.Slug) {
		return invalid("slug", st.Slug, "slug must be lowercase letters, digits, '-' or '_'")
	}
	if st.Name == "" {
		return invalid("name", "", "name is required")
	}
	if st.BasePriceCents < 0 || st.BasePriceCents > MaxPriceCents {
		return invalid("basePriceCents", strconv.FormatInt(st.BasePriceCents, 10), "base price must be between 0 and "+strconv.FormatInt(MaxPriceCents, 10))
	}
	if st.BaseDays < 0 || st.BaseDays > MaxBaseDays {
		return invalid("baseDays", strconv.Itoa(st.BaseDays), "base duration must be between 0 and "+strconv.Itoa(MaxBaseDays))
	}
	return nil
}

func (cl *ComplexityLevel) Normalize() error {
	cl.Slug = strings.TrimSpace(cl.Slug)
	cl.Name = strings.TrimSpace(cl.Name)
	if !slugRe.MatchString(cl.Slug) {
		return invalid("slug", cl.Slug, "slug must be lowercase letters, digits, '-' or '_'")
	}
	if cl.Name == "" {
		return invalid("name", "", "name is required")
	}
	if cl.Multiplier.LessThan(decimal.Zero) || cl.Multiplier.GreaterThan(maxMultiplier) {
		return invalid("multiplier", cl.Multiplier.String(), "multiplier must be between 0 and "+multiplierLimit)
	}
	if !cl.Multiplier.Equal(cl.Multiplier.Truncate(multiplierScale)) {
		return invalid("multiplier", cl.Multiplier.String(), "multiplier allows at most 3 decimal places")
	}
	return nil
}

func (a *AddOn) Normalize() error {
	a.Name = strings.TrimSpace(a.Name)
	a.ServiceTypeID = strings.TrimSpace(a.ServiceTypeID)
	if a.Name == "" {
		return invalid("name", "", "name is required")
	}
	if a.ServiceTypeID == "" {
		return invalid("serviceTypeId", "", "serviceTypeId is required")
	}
	if a.PriceCents < 0 || a.PriceCents > MaxPriceCents {
		return invalid("priceCents", strconv.FormatInt(a.PriceCents, 10), "price must be between 0 and "+strconv.FormatInt(MaxPriceCents, 10))
	}
	return nil
}

func invalid(field, value, msg string) error {
	return apperr.Validation(apperr.CodeValidationFailed, field, value, msg)
}
