package order

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kitbuild/internal/adminaction"
	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/internal/catalog"
	"kitbuild/internal/progress"
)

// memStore mirrors the Postgres repository: one mutex plays the row lock and
// every Write lands atomically or not at all.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]Order
	entries map[string][]progress.Entry
	audits  []audit.Record
	actions []adminaction.Record
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]Order{}, entries: map[string][]progress.Entry{}}
}

func (m *memStore) Create(_ context.Context, w Write) (Order, progress.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := w.Order
	o.ID = uuid.NewString()
	o.Version = 1
	o.Items = withIDs(o.ID, o.Items)
	return o, m.commit(o, w), nil
}

func (m *memStore) Update(_ context.Context, w Write) (Order, progress.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.orders[w.Order.ID]
	if !ok {
		return Order{}, progress.Entry{}, apperr.NotFound("order")
	}
	if cur.Version != w.ExpectedVersion {
		return Order{}, progress.Entry{}, apperr.Conflict("order was modified concurrently; reload and retry")
	}
	if w.AdminAction != nil {
		if err := w.AdminAction.Validate(); err != nil {
			return Order{}, progress.Entry{}, err
		}
	}
	o := w.Order
	o.Version = cur.Version + 1
	switch w.Items {
	case ItemsUnchanged:
		o.Items = cur.Items
	case ItemsReplaced:
		o.Items = withIDs(o.ID, o.Items)
	}
	return o, m.commit(o, w), nil
}

func (m *memStore) commit(o Order, w Write) progress.Entry {
	m.orders[o.ID] = cloneOrder(o)

	e := w.Entry
	e.ID = uuid.NewString()
	e.OrderID = o.ID
	e.Seq = int64(len(m.entries[o.ID]) + 1)
	m.entries[o.ID] = append(m.entries[o.ID], e)

	rec := w.Audit
	id := o.ID
	rec.OrderID = &id
	m.audits = append(m.audits, rec)
	if w.AdminAction != nil {
		act := *w.AdminAction
		act.OrderID = o.ID
		m.actions = append(m.actions, act)
	}
	return e
}

func (m *memStore) Get(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, apperr.NotFound("order")
	}
	return cloneOrder(o), nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if f.ClientID != nil && (o.ClientID == nil || *o.ClientID != *f.ClientID) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func (m *memStore) ledger(orderID string) []progress.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]progress.Entry(nil), m.entries[orderID]...)
}

// put stores o directly, bypassing the engine, for tests that need an order in
// a given state.
func (m *memStore) put(o Order) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	o.Items = withIDs(o.ID, o.Items)
	m.orders[o.ID] = cloneOrder(o)
	return o
}

func withIDs(orderID string, items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.ID = uuid.NewString()
		it.OrderID = orderID
		out[i] = it
	}
	return out
}

func cloneOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	return o
}

type fakeCatalog struct {
	mu   sync.Mutex
	snap catalog.Snapshot
}

func (f *fakeCatalog) Snapshot(context.Context) (catalog.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeCatalog) set(s catalog.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}
