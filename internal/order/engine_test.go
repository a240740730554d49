package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitbuild/internal/actor"
	"kitbuild/internal/adminaction"
	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/internal/catalog"
	"kitbuild/internal/estimate"
	"kitbuild/internal/progress"
)

func catalogWith(fullBuildCents int64) catalog.Snapshot {
	return catalog.NewSnapshot(
		[]catalog.ServiceType{
			{ID: "st-full", Slug: "full_build", Name: "Full build", BasePriceCents: fullBuildCents, BaseDays: 5, Active: true},
			{ID: "st-paint", Slug: "paint_only", Name: "Paint only", BasePriceCents: 100000, BaseDays: 2, Active: true},
		},
		[]catalog.ComplexityLevel{
			{ID: "cl-std", Slug: "standard", Name: "Standard", Multiplier: decimal.NewFromInt(1), Active: true},
			{ID: "cl-high", Slug: "high", Name: "High", Multiplier: decimal.RequireFromString("1.5"), Active: true},
		},
		[]catalog.AddOn{
			{ID: "ao-decal", Name: "Decals", ServiceTypeID: "st-paint", PriceCents: 900, Active: true},
		},
	)
}

func estimateOf(price int64, days int) estimate.Result {
	return estimate.Result{
		TotalPriceCents: price,
		TotalDays:       days,
		LineItems:       []estimate.LineItem{{ServiceTypeID: "st-full", ComplexityLevelID: "cl-high", PriceCents: price, Days: days}},
	}
}

func newEngine(t *testing.T) (*Engine, *memStore, *fakeCatalog) {
	t.Helper()
	store := newMemStore()
	cat := &fakeCatalog{snap: catalogWith(500000)}
	e := NewEngine(store, cat)
	e.Now = func() time.Time { return now }
	return e, store, cat
}

func item(kit, service, level string, addOns ...string) ItemInput {
	return ItemInput{KitName: kit, ItemRequest: estimate.ItemRequest{ServiceType: service, ComplexityLevel: level, AddOnIDs: addOns}}
}

func TestEngineCreate_AnonymousOrderIsEstimated(t *testing.T) {
	e, store, _ := newEngine(t)

	o, entry, err := e.Create(context.Background(), actor.Anonymous, CreateInput{
		Items: []ItemInput{item(" RX-78-2 ", "full_build", "high")},
		Notes: "first time customer",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusEstimated, o.Status)
	assert.Nil(t, o.ClientID)
	assert.Equal(t, int64(750000), o.EstimatedPriceCents)
	assert.Equal(t, 8, o.EstimatedDays)
	assert.Nil(t, o.FinalPriceCents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "RX-78-2", o.Items[0].KitName)
	assert.Equal(t, "st-full", o.Items[0].ServiceTypeID)
	assert.NotEmpty(t, o.Items[0].ID)

	assert.Equal(t, int64(1), entry.Seq)
	assert.Equal(t, "estimated", *entry.ToStatus)
	assert.Nil(t, entry.FromStatus)
	assert.Len(t, store.ledger(o.ID), 1)
	require.Len(t, store.audits, 1)
	assert.Equal(t, audit.ActionOrderCreated, store.audits[0].Action)
}

func TestEngineCreate_Ownership(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()
	items := []ItemInput{item("Zaku", "paint_only", "standard")}

	o, _, err := e.Create(ctx, owner, CreateInput{Items: items})
	require.NoError(t, err)
	require.NotNil(t, o.ClientID)
	assert.Equal(t, "c-1", *o.ClientID)

	_, _, err = e.Create(ctx, owner, CreateInput{Items: items, ClientID: strptr("c-9")})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, _, err = e.Create(ctx, owner, CreateInput{Items: items, Draft: true})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	o, _, err = e.Create(ctx, staffActor, CreateInput{Items: items, ClientID: strptr("c-9"), Draft: true})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, o.Status)
	assert.Equal(t, "c-9", *o.ClientID)

	_, _, err = e.Create(ctx, actor.Anonymous, CreateInput{Items: items, ClientID: strptr("c-1")})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	o, _, err = e.Create(ctx, actor.Anonymous, CreateInput{Items: items, ClientID: strptr("  ")})
	require.NoError(t, err)
	assert.Nil(t, o.ClientID)
}

func TestEngineCreate_FailuresStoreNothing(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()

	_, _, err := e.Create(ctx, owner, CreateInput{})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindValidation, Code: apperr.CodeEmptyOrder})

	_, _, err = e.Create(ctx, owner, CreateInput{Items: []ItemInput{item("", "full_build", "high")}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = e.Create(ctx, owner, CreateInput{Items: []ItemInput{item("Zaku", "full_build", "ultra")}})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindReference, Code: apperr.CodeUnknownComplexityLevel})

	_, _, err = e.Create(ctx, owner, CreateInput{Items: []ItemInput{item("Zaku", "full_build", "high", "ao-decal")}})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindValidation, Code: apperr.CodeInvalidAddOn})

	assert.Empty(t, store.orders)
	assert.Empty(t, store.audits)
}

func TestEngineTransition_ClientCancelAppendsOneEntry(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusApproved))
	before := len(store.ledger(o.ID))

	got, entry, err := e.Transition(ctx, owner, o.ID, TransitionInput{To: "cancelled", Reason: "changed mind"})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, o.Version+1, got.Version)
	ledger := store.ledger(o.ID)
	require.Len(t, ledger, before+1)
	assert.Equal(t, entry.ID, ledger[len(ledger)-1].ID)
	assert.Equal(t, "approved", *entry.FromStatus)
	assert.Equal(t, "cancelled", *entry.ToStatus)
	assert.Contains(t, got.Notes, "Cancelled: changed mind")
}

func TestEngineTransition_FailureLeavesOrderAlone(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusDraft))

	_, _, err := e.Transition(ctx, staffActor, o.ID, TransitionInput{To: "in_progress"})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindState, Code: apperr.CodeInvalidTransition})

	_, _, err = e.Transition(ctx, staffActor, o.ID, TransitionInput{To: "shipped"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = e.Transition(ctx, staffActor, "nope", TransitionInput{To: "estimated"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cur, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, cur.Status)
	assert.Equal(t, o.Version, cur.Version)
	assert.Empty(t, store.ledger(o.ID))
}

func TestEngineTransition_DraftToEstimatedReprices(t *testing.T) {
	e, store, cat := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusDraft))

	cat.set(catalogWith(600000))
	got, entry, err := e.Transition(ctx, staffActor, o.ID, TransitionInput{To: "estimated"})
	require.NoError(t, err)

	assert.Equal(t, int64(900000), got.EstimatedPriceCents)
	assert.Equal(t, 8, got.EstimatedDays)
	assert.Equal(t, int64(900000), got.Items[0].LinePriceCents)
	assert.Contains(t, entry.Message, "900000")
	assert.Len(t, store.ledger(o.ID), 1, "re-pricing during a transition adds no extra entry")
}

func TestEngineTransition_StaleVersionConflicts(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusEstimated))

	stale := o.Version - 1
	_, _, err := e.Transition(ctx, staffActor, o.ID, TransitionInput{To: "approved", Version: &stale})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// A write computed from an old read loses against one that landed first.
	next, entry, err := Transition(o, TransitionRequest{To: StatusApproved, Actor: staffActor}, now)
	require.NoError(t, err)
	_, _, err = store.Update(ctx, Write{Order: next, ExpectedVersion: o.Version, Entry: entry})
	require.NoError(t, err)
	_, _, err = store.Update(ctx, Write{Order: next, ExpectedVersion: o.Version, Entry: entry})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestEngineTransition_ConcurrentRequestsSerialize(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusEstimated))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.Transition(ctx, staffActor, o.ID, TransitionInput{To: "approved"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperr.ErrConflict) && !errors.Is(err, apperr.ErrState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.ledger(o.ID), 1)
}

func TestEngineTransition_CompleteWithOverride(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusInProgress))

	got, _, err := e.Transition(ctx, staffActor, o.ID, TransitionInput{
		To: "completed", Reason: "client supplied paints", Override: &FinalOverride{PriceCents: 700000, Days: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700000), *got.FinalPriceCents)
	assert.Equal(t, 7, *got.FinalDays)

	require.Len(t, store.actions, 1)
	assert.Equal(t, adminaction.ActionOverrideFinalValues, store.actions[0].Type)
	assert.Equal(t, o.ID, store.actions[0].OrderID)
}

func TestEngineReestimate(t *testing.T) {
	e, store, cat := newEngine(t)
	ctx := context.Background()

	est := store.put(orderIn(StatusEstimated))
	cat.set(catalogWith(400000))
	got, entry, err := e.Reestimate(ctx, staffActor, est.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), got.EstimatedPriceCents)
	assert.Equal(t, progress.KindEstimate, entry.Kind)
	assert.Nil(t, got.FinalPriceCents)

	done := orderIn(StatusCompleted)
	price, days := int64(750000), 8
	done.FinalPriceCents, done.FinalDays = &price, &days
	done = store.put(done)

	_, _, err = e.Reestimate(ctx, staffActor, done.ID)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindState, Code: apperr.CodeFinalValuesLocked})

	cur, err := store.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750000), *cur.FinalPriceCents)
	assert.Equal(t, int64(750000), cur.EstimatedPriceCents)

	_, _, err = e.Reestimate(ctx, owner, est.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestEngineReestimate_InactiveReferenceIsRejected(t *testing.T) {
	e, store, cat := newEngine(t)
	ctx := context.Background()
	o := store.put(orderIn(StatusEstimated))

	snap := catalogWith(500000)
	snap.ServiceTypes[0].Active = false
	cat.set(catalog.NewSnapshot(snap.ServiceTypes, snap.ComplexityLevels, snap.AddOns))

	_, _, err := e.Reestimate(ctx, staffActor, o.ID)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindReference, Code: apperr.CodeUnknownServiceType})

	cur, _ := store.Get(ctx, o.ID)
	assert.Equal(t, int64(750000), cur.EstimatedPriceCents)
}

func TestEngineReplaceItems(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	draft := store.put(orderIn(StatusDraft))

	got, _, err := e.ReplaceItems(ctx, staffActor, draft.ID, []ItemInput{
		item("Zaku", "paint_only", "standard", "ao-decal"),
		item("Gouf", "paint_only", "high"),
	})
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(100900+150000), got.EstimatedPriceCents)
	assert.Equal(t, 2+3, got.EstimatedDays)

	est := store.put(orderIn(StatusEstimated))
	_, _, err = e.ReplaceItems(ctx, staffActor, est.ID, []ItemInput{item("Zaku", "paint_only", "standard")})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindState, Code: apperr.CodeItemsLocked})

	_, _, err = e.ReplaceItems(ctx, owner, draft.ID, []ItemInput{item("Zaku", "paint_only", "standard")})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestEngineGetAndList(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	mine := store.put(orderIn(StatusEstimated))
	theirs := orderIn(StatusEstimated)
	theirs.ID = ""
	theirs.ClientID = strptr("c-2")
	store.put(theirs)

	_, err := e.Get(ctx, owner, mine.ID)
	assert.NoError(t, err)
	_, err = e.Get(ctx, stranger, mine.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = e.Get(ctx, actor.Anonymous, mine.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	list, err := e.List(ctx, owner, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = e.List(ctx, staffActor, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.List(ctx, actor.Anonymous, ListFilter{})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}
