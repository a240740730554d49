package progress

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitbuild/internal/apperr"
	"kitbuild/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Insert appends e inside tx and returns it with id and seq filled in.
//
// The caller must already hold the parent order row lock (SELECT ... FOR UPDATE
// or an UPDATE of the row in the same tx); that lock is what serializes seq
// allocation per order.
func Insert(ctx context.Context, tx pgx.Tx, e Entry) (Entry, error) {
	const q = `
INSERT INTO progress_entries (order_id, order_item_id, seq, kind, message, photo_ref, from_status, to_status, actor, actor_role, created_at)
VALUES (
	$1, $2,
	(SELECT COALESCE(MAX(seq), 0) + 1 FROM progress_entries WHERE order_id = $1),
	$3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING id, seq
`
	err := tx.QueryRow(ctx, q,
		e.OrderID, e.OrderItemID, e.Kind, e.Message, e.PhotoRef,
		e.FromStatus, e.ToStatus, e.Actor, e.ActorRole, e.CreatedAt,
	).Scan(&e.ID, &e.Seq)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// LockedOrder is what LockOrder reads while holding the row lock.
type LockedOrder struct {
	ClientID *string
	Status   string
}

// LockOrder takes the order row lock and returns the owner and current status.
func LockOrder(ctx context.Context, tx pgx.Tx, orderID string) (LockedOrder, error) {
	var o LockedOrder
	err := tx.QueryRow(ctx, `SELECT client_id, status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&o.ClientID, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return LockedOrder{}, apperr.NotFound("order")
	}
	return o, err
}

// Append locks the order, checks the optional item belongs to it, then inserts.
func (r *Repository) Append(ctx context.Context, e Entry) (Entry, error) {
	var out Entry
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := LockOrder(ctx, tx, e.OrderID); err != nil {
			return err
		}
		if e.OrderItemID != nil {
			var ok bool
			const q = `SELECT EXISTS (SELECT 1 FROM order_items WHERE id = $1 AND order_id = $2)`
			if err := tx.QueryRow(ctx, q, *e.OrderItemID, e.OrderID).Scan(&ok); err != nil {
				return err
			}
			if !ok {
				return apperr.Reference(apperr.CodeUnknownOrderItem, "orderItemId", *e.OrderItemID, "item does not belong to order")
			}
		}
		var err error
		out, err = Insert(ctx, tx, e)
		return err
	})
	return out, err
}

// OrderOwner returns the client id of the order, or NotFound.
func (r *Repository) OrderOwner(ctx context.Context, orderID string) (*string, error) {
	var clientID *string
	err := r.db.QueryRow(ctx, `SELECT client_id FROM orders WHERE id = $1`, orderID).Scan(&clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order")
	}
	return clientID, err
}

// ListFor returns the ledger of an order in insertion order (seq ascending).
func (r *Repository) ListFor(ctx context.Context, orderID string) ([]Entry, error) {
	const q = `
SELECT id, order_id, order_item_id, seq, kind, message, photo_ref, from_status, to_status, actor, actor_role, created_at
FROM progress_entries
WHERE order_id = $1
ORDER BY seq ASC
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.OrderItemID, &e.Seq, &e.Kind, &e.Message, &e.PhotoRef,
			&e.FromStatus, &e.ToStatus, &e.Actor, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
