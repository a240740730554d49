package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kitbuild/internal/apperr"
	"kitbuild/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) ListActiveServiceTypes(ctx context.Context) ([]ServiceType, error) {
	return r.listServiceTypes(ctx, true)
}

func (r *Repository) listServiceTypes(ctx context.Context, activeOnly bool) ([]ServiceType, error) {
	const q = `
SELECT id, slug, name, base_price_cents, base_days, active, sort_order
FROM service_types
WHERE ($1 = FALSE OR active)
ORDER BY sort_order ASC, name ASC
`
	rows, err := r.db.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		var st ServiceType
		if err := rows.Scan(&st.ID, &st.Slug, &st.Name, &st.BasePriceCents, &st.BaseDays, &st.Active, &st.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *Repository) ListActiveComplexityLevels(ctx context.Context) ([]ComplexityLevel, error) {
	return r.listComplexityLevels(ctx, true)
}

func (r *Repository) listComplexityLevels(ctx context.Context, activeOnly bool) ([]ComplexityLevel, error) {
	const q = `
SELECT id, slug, name, multiplier::text, sort_order, active
FROM complexity_levels
WHERE ($1 = FALSE OR active)
ORDER BY sort_order ASC, name ASC
`
	rows, err := r.db.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplexityLevel
	for rows.Next() {
		var cl ComplexityLevel
		var mult string
		if err := rows.Scan(&cl.ID, &cl.Slug, &cl.Name, &mult, &cl.SortOrder, &cl.Active); err != nil {
			return nil, err
		}
		if cl.Multiplier, err = decimal.NewFromString(mult); err != nil {
			return nil, fmt.Errorf("complexity level %s: bad multiplier %q: %w", cl.ID, mult, err)
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// ListAddOnsForService returns the active add-ons linked to serviceTypeID.
func (r *Repository) ListAddOnsForService(ctx context.Context, serviceTypeID string) ([]AddOn, error) {
	const q = `
SELECT id, name, service_type_id, price_cents, required, active, sort_order
FROM add_ons
WHERE service_type_id = $1 AND active
ORDER BY sort_order ASC, name ASC
`
	return r.queryAddOns(ctx, q, serviceTypeID)
}

func (r *Repository) listAllAddOns(ctx context.Context) ([]AddOn, error) {
	const q = `
SELECT id, name, service_type_id, price_cents, required, active, sort_order
FROM add_ons
ORDER BY sort_order ASC, name ASC
`
	return r.queryAddOns(ctx, q)
}

func (r *Repository) queryAddOns(ctx context.Context, q string, args ...any) ([]AddOn, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AddOn
	for rows.Next() {
		var a AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.ServiceTypeID, &a.PriceCents, &a.Required, &a.Active, &a.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Snapshot reads the active catalog. Inactive rows are left out, so a stale
// reference from a client surfaces as an unknown reference during estimation.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	sts, err := r.ListActiveServiceTypes(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list service types: %w", err)
	}
	cls, err := r.ListActiveComplexityLevels(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list complexity levels: %w", err)
	}
	var addOns []AddOn
	for _, st := range sts {
		as, err := r.ListAddOnsForService(ctx, st.ID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list add-ons for %s: %w", st.ID, err)
		}
		addOns = append(addOns, as...)
	}
	return NewSnapshot(sts, cls, addOns), nil
}

// Full returns every catalog row including inactive ones, for admin screens.
func (r *Repository) Full(ctx context.Context) (Snapshot, error) {
	sts, err := r.listServiceTypes(ctx, false)
	if err != nil {
		return Snapshot{}, err
	}
	cls, err := r.listComplexityLevels(ctx, false)
	if err != nil {
		return Snapshot{}, err
	}
	addOns, err := r.listAllAddOns(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(sts, cls, addOns), nil
}

func (r *Repository) SaveServiceType(ctx context.Context, st ServiceType) (*ServiceType, error) {
	const qInsert = `
INSERT INTO service_types (slug, name, base_price_cents, base_days, active, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`
	const qUpdate = `
UPDATE service_types
SET slug = $2, name = $3, base_price_cents = $4, base_days = $5, active = $6, sort_order = $7, updated_at = NOW()
WHERE id = $1
RETURNING id
`
	var err error
	if st.ID == "" {
		err = r.db.QueryRow(ctx, qInsert, st.Slug, st.Name, st.BasePriceCents, st.BaseDays, st.Active, st.SortOrder).Scan(&st.ID)
	} else {
		err = r.db.QueryRow(ctx, qUpdate, st.ID, st.Slug, st.Name, st.BasePriceCents, st.BaseDays, st.Active, st.SortOrder).Scan(&st.ID)
	}
	if err != nil {
		return nil, mapWriteErr(err, "service type")
	}
	return &st, nil
}

func (r *Repository) SaveComplexityLevel(ctx context.Context, cl ComplexityLevel) (*ComplexityLevel, error) {
	const qInsert = `
INSERT INTO complexity_levels (slug, name, multiplier, sort_order, active)
VALUES ($1, $2, CAST($3 AS numeric), $4, $5)
RETURNING id
`
	const qUpdate = `
UPDATE complexity_levels
SET slug = $2, name = $3, multiplier = CAST($4 AS numeric), sort_order = $5, active = $6, updated_at = NOW()
WHERE id = $1
RETURNING id
`
	var err error
	if cl.ID == "" {
		err = r.db.QueryRow(ctx, qInsert, cl.Slug, cl.Name, cl.Multiplier.String(), cl.SortOrder, cl.Active).Scan(&cl.ID)
	} else {
		err = r.db.QueryRow(ctx, qUpdate, cl.ID, cl.Slug, cl.Name, cl.Multiplier.String(), cl.SortOrder, cl.Active).Scan(&cl.ID)
	}
	if err != nil {
		return nil, mapWriteErr(err, "complexity level")
	}
	return &cl, nil
}

func (r *Repository) SaveAddOn(ctx context.Context, a AddOn) (*AddOn, error) {
	const qInsert = `
INSERT INTO add_ons (name, service_type_id, price_cents, required, active, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`
	const qUpdate = `
UPDATE add_ons
SET name = $2, service_type_id = $3, price_cents = $4, required = $5, active = $6, sort_order = $7, updated_at = NOW()
WHERE id = $1
RETURNING id
`
	var err error
	if a.ID == "" {
		err = r.db.QueryRow(ctx, qInsert, a.Name, a.ServiceTypeID, a.PriceCents, a.Required, a.Active, a.SortOrder).Scan(&a.ID)
	} else {
		err = r.db.QueryRow(ctx, qUpdate, a.ID, a.Name, a.ServiceTypeID, a.PriceCents, a.Required, a.Active, a.SortOrder).Scan(&a.ID)
	}
	if err != nil {
		return nil, mapWriteErr(err, "add-on")
	}
	return &a, nil
}

// Deactivate soft-deletes a catalog row. Historical order items keep pointing at it.
func (r *Repository) Deactivate(ctx context.Context, kind Kind, id string) error {
	table, ok := kindTables[kind]
	if !ok {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	tag, err := r.db.Exec(ctx, `UPDATE `+table+` SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(string(kind))
	}
	return nil
}

type Kind string

const (
	KindServiceType     Kind = "service type"
	KindComplexityLevel Kind = "complexity level"
	KindAddOn           Kind = "add-on"
)

var kindTables = map[Kind]string{
	KindServiceType:     "service_types",
	KindComplexityLevel: "complexity_levels",
	KindAddOn:           "add_ons",
}

func mapWriteErr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	if db.IsUniqueViolation(err) {
		return apperr.Validation(apperr.CodeValidationFailed, "slug", "", what+" slug already exists")
	}
	if db.IsForeignKeyViolation(err) {
		return apperr.Reference(apperr.CodeUnknownServiceType, "serviceTypeId", "", "service type not found")
	}
	return err
}
