package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitbuild/internal/adminaction"
	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/internal/progress"
	"kitbuild/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const orderColumns = `id, client_id, status, estimated_price_cents, estimated_days, final_price_cents, final_days, notes, version, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, w Write) (Order, progress.Entry, error) {
	var (
		o     = w.Order
		entry progress.Entry
	)
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
INSERT INTO orders (client_id, status, estimated_price_cents, estimated_days, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, version
`
		if err := tx.QueryRow(ctx, q, o.ClientID, o.Status, o.EstimatedPriceCents, o.EstimatedDays, o.Notes, o.CreatedAt, o.UpdatedAt).
			Scan(&o.ID, &o.Version); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		var err error
		if o.Items, err = insertItems(ctx, tx, o.ID, o.Items); err != nil {
			return err
		}
		entry, err = r.finish(ctx, tx, o.ID, w)
		return err
	})
	if err != nil {
		return Order{}, progress.Entry{}, mapWriteErr(err)
	}
	return o, entry, nil
}

// Update writes w.Order if the stored version still equals w.ExpectedVersion.
func (r *Repository) Update(ctx context.Context, w Write) (Order, progress.Entry, error) {
	var (
		o     = w.Order
		entry progress.Entry
	)
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
UPDATE orders
SET status = $3,
    estimated_price_cents = $4,
    estimated_days = $5,
    final_price_cents = $6,
    final_days = $7,
    notes = $8,
    updated_at = $9,
    version = version + 1
WHERE id = $1 AND version = $2
RETURNING version
`
		err := tx.QueryRow(ctx, q, o.ID, w.ExpectedVersion, o.Status, o.EstimatedPriceCents, o.EstimatedDays,
			o.FinalPriceCents, o.FinalDays, o.Notes, o.UpdatedAt).Scan(&o.Version)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return apperr.NotFound("order")
			}
			return apperr.Conflict("order was modified concurrently; reload and retry")
		}
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		switch w.Items {
		case ItemsRepriced:
			const qi = `UPDATE order_items SET line_price_cents = $3, line_days = $4 WHERE id = $1 AND order_id = $2`
			for _, it := range o.Items {
				if _, err := tx.Exec(ctx, qi, it.ID, o.ID, it.LinePriceCents, it.LineDays); err != nil {
					return fmt.Errorf("reprice item %s: %w", it.ID, err)
				}
			}
		case ItemsReplaced:
			if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
			if o.Items, err = insertItems(ctx, tx, o.ID, o.Items); err != nil {
				return err
			}
		}

		entry, err = r.finish(ctx, tx, o.ID, w)
		return err
	})
	if err != nil {
		return Order{}, progress.Entry{}, mapWriteErr(err)
	}
	return o, entry, nil
}

// finish writes the ledger entry and side records of w. The order row is
// already locked by the INSERT or UPDATE in the same tx.
func (r *Repository) finish(ctx context.Context, tx pgx.Tx, orderID string, w Write) (progress.Entry, error) {
	e := w.Entry
	e.OrderID = orderID
	e, err := progress.Insert(ctx, tx, e)
	if err != nil {
		return progress.Entry{}, fmt.Errorf("append progress: %w", err)
	}

	rec := w.Audit
	rec.OrderID = &orderID
	if err := audit.Insert(ctx, tx, rec); err != nil {
		return progress.Entry{}, fmt.Errorf("audit: %w", err)
	}
	if w.AdminAction != nil {
		act := *w.AdminAction
		act.OrderID = orderID
		if err := adminaction.Insert(ctx, tx, act); err != nil {
			return progress.Entry{}, err
		}
	}
	return e, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []Item) ([]Item, error) {
	const q = `
INSERT INTO order_items (order_id, kit_name, kit_grade, service_type_id, complexity_level_id, notes, add_on_ids, sort_order, line_price_cents, line_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`
	out := make([]Item, len(items))
	for i, it := range items {
		it.OrderID = orderID
		if it.AddOnIDs == nil {
			it.AddOnIDs = []string{}
		}
		if err := tx.QueryRow(ctx, q, orderID, it.KitName, it.KitGrade, it.ServiceTypeID, it.ComplexityLevelID,
			it.Notes, it.AddOnIDs, it.SortOrder, it.LinePriceCents, it.LineDays).Scan(&it.ID); err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		out[i] = it
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("order")
	}
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = r.listItems(ctx, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	q := `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR client_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3
`
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	rows, err := r.db.Query(ctx, q, f.ClientID, status, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = r.listItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) listItems(ctx context.Context, orderID string) ([]Item, error) {
	const q = `
SELECT id, order_id, kit_name, kit_grade, service_type_id, complexity_level_id, notes, add_on_ids, sort_order, line_price_cents, line_days
FROM order_items
WHERE order_id = $1
ORDER BY sort_order ASC
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.KitName, &it.KitGrade, &it.ServiceTypeID, &it.ComplexityLevelID,
			&it.Notes, &it.AddOnIDs, &it.SortOrder, &it.LinePriceCents, &it.LineDays); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ClientID, &o.Status, &o.EstimatedPriceCents, &o.EstimatedDays,
		&o.FinalPriceCents, &o.FinalDays, &o.Notes, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func mapWriteErr(err error) error {
	if db.IsForeignKeyViolation(err) {
		return apperr.Reference(apperr.CodeUnknownServiceType, "items", "", "an item references a catalog entry that no longer exists")
	}
	return err
}
