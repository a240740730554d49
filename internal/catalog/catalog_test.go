package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
)

func fixture() Snapshot {
	return NewSnapshot(
		[]ServiceType{
			{ID: "st-2", Slug: "paint_only", Name: "Paint only", BasePriceCents: 200000, BaseDays: 3, Active: true, SortOrder: 2},
			{ID: "st-1", Slug: "full_build", Name: "Full build", BasePriceCents: 500000, BaseDays: 5, Active: true, SortOrder: 1},
		},
		[]ComplexityLevel{
			{ID: "cl-1", Slug: "high", Name: "High", Multiplier: decimal.RequireFromString("1.5"), Active: true},
		},
		[]AddOn{
			{ID: "ao-2", Name: "Stand", ServiceTypeID: "st-1", PriceCents: 1500, SortOrder: 2, Active: true},
			{ID: "ao-1", Name: "Topcoat", ServiceTypeID: "st-1", PriceCents: 2500, Required: true, SortOrder: 1, Active: true},
			{ID: "ao-3", Name: "Decals", ServiceTypeID: "st-2", PriceCents: 900, Active: true},
		},
	)
}

func TestSnapshot_Lookups(t *testing.T) {
	snap := fixture()

	assert.Equal(t, "st-1", snap.ServiceTypes[0].ID, "sorted by sort order")

	st, ok := snap.ServiceType("full_build")
	require.True(t, ok)
	assert.Equal(t, "st-1", st.ID)

	st, ok = snap.ServiceType("st-2")
	require.True(t, ok)
	assert.Equal(t, "paint_only", st.Slug)

	_, ok = snap.ServiceType("missing")
	assert.False(t, ok)

	cl, ok := snap.ComplexityLevel("high")
	require.True(t, ok)
	assert.True(t, cl.Multiplier.Equal(decimal.RequireFromString("1.5")))

	addOns := snap.AddOnsFor("st-1")
	require.Len(t, addOns, 2)
	assert.Equal(t, "ao-1", addOns[0].ID)
	assert.Empty(t, snap.AddOnsFor("nope"))

	a, ok := snap.AddOn("ao-3")
	require.True(t, ok)
	assert.Equal(t, "st-2", a.ServiceTypeID)
}

func TestNormalize(t *testing.T) {
	st := ServiceType{Slug: "  full_build ", Name: " Full build "}
	require.NoError(t, st.Normalize())
	assert.Equal(t, "full_build", st.Slug)
	assert.Equal(t, "Full build", st.Name)

	bad := []interface{ Normalize() error }{
		&ServiceType{Slug: "Full Build", Name: "x"},
		&ServiceType{Slug: "ok", Name: ""},
		&ServiceType{Slug: "ok", Name: "x", BasePriceCents: -1},
		&ServiceType{Slug: "ok", Name: "x", BaseDays: -1},
		&ServiceType{Slug: "ok", Name: "x", BasePriceCents: MaxPriceCents + 1},
		&ServiceType{Slug: "ok", Name: "x", BaseDays: MaxBaseDays + 1},
		&ComplexityLevel{Slug: "low", Name: "Low", Multiplier: decimal.NewFromInt(-1)},
		&AddOn{Name: "x"},
		&AddOn{Name: "x", ServiceTypeID: "st-1", PriceCents: -5},
		&AddOn{Name: "x", ServiceTypeID: "st-1", PriceCents: MaxPriceCents + 1},
	}
	for i, v := range bad {
		err := v.Normalize()
		assert.ErrorIs(t, err, apperr.ErrValidation, "case %d", i)
	}

	zero := ComplexityLevel{Slug: "free", Name: "Free", Multiplier: decimal.Zero}
	assert.NoError(t, zero.Normalize())

	edge := ServiceType{Slug: "edge", Name: "Edge", BasePriceCents: MaxPriceCents, BaseDays: MaxBaseDays}
	assert.NoError(t, edge.Normalize())
}

func TestNormalize_MultiplierFitsColumn(t *testing.T) {
	for _, m := range []string{"0", "1", "1.5", "2.125", "1.2340", "999.999"} {
		cl := ComplexityLevel{Slug: "ok", Name: "Ok", Multiplier: decimal.RequireFromString(m)}
		assert.NoError(t, cl.Normalize(), m)
	}
	for _, m := range []string{"1.2345", "0.0001", "1000", "999.9991"} {
		cl := ComplexityLevel{Slug: "ok", Name: "Ok", Multiplier: decimal.RequireFromString(m)}
		err := cl.Normalize()
		require.ErrorIs(t, err, apperr.ErrValidation, m)

		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, apperr.CodeValidationFailed, ae.Code)
		assert.Equal(t, "multiplier", ae.Field)
	}
}

type fakeStore struct {
	snap        Snapshot
	saved       []any
	deactivated map[Kind]string
	audits      []audit.Record
}

func (f *fakeStore) Record(_ context.Context, rec audit.Record) error {
	f.audits = append(f.audits, rec)
	return nil
}

func (f *fakeStore) Snapshot(context.Context) (Snapshot, error) { return f.snap, nil }
func (f *fakeStore) Full(context.Context) (Snapshot, error)     { return f.snap, nil }

func (f *fakeStore) SaveServiceType(_ context.Context, st ServiceType) (*ServiceType, error) {
	if st.ID == "" {
		st.ID = "st-new"
	}
	f.saved = append(f.saved, st)
	return &st, nil
}

func (f *fakeStore) SaveComplexityLevel(_ context.Context, cl ComplexityLevel) (*ComplexityLevel, error) {
	f.saved = append(f.saved, cl)
	return &cl, nil
}

func (f *fakeStore) SaveAddOn(_ context.Context, a AddOn) (*AddOn, error) {
	f.saved = append(f.saved, a)
	return &a, nil
}

func (f *fakeStore) Deactivate(_ context.Context, kind Kind, id string) error {
	if id == "missing" {
		return apperr.NotFound(string(kind))
	}
	if f.deactivated == nil {
		f.deactivated = map[Kind]string{}
	}
	f.deactivated[kind] = id
	return nil
}

func newRouter(store *fakeStore) http.Handler {
	h := Handlers{Catalog: store, Audit: store}
	r := chi.NewRouter()
	r.Get("/v1/catalog", h.Public)
	r.Post("/v1/admin/service-types", h.SaveServiceType)
	r.Put("/v1/admin/service-types/{id}", h.SaveServiceType)
	r.Post("/v1/admin/complexity-levels", h.SaveComplexityLevel)
	r.Post("/v1/admin/service-types/{id}/deactivate", h.Deactivate(KindServiceType))
	return r
}

func TestHandlers(t *testing.T) {
	store := &fakeStore{snap: fixture()}
	srv := newRouter(store)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodGet, "/v1/catalog", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"full_build"`)

	rec = do(http.MethodPost, "/v1/admin/service-types", `{"slug":"kitbash","name":"Kitbash","basePriceCents":90000,"baseDays":4}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.saved, 1)
	created := store.saved[0].(ServiceType)
	assert.True(t, created.Active)

	rec = do(http.MethodPut, "/v1/admin/service-types/st-1", `{"slug":"full_build","name":"Full build","basePriceCents":510000,"baseDays":5,"active":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "st-1", store.saved[1].(ServiceType).ID)

	rec = do(http.MethodPost, "/v1/admin/service-types", `{"slug":"Bad Slug","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"slug"`)

	rec = do(http.MethodPost, "/v1/admin/complexity-levels", `{"slug":"extreme","name":"Extreme","multiplier":"2.25"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, store.saved[2].(ComplexityLevel).Multiplier.Equal(decimal.RequireFromString("2.25")))

	rec = do(http.MethodPost, "/v1/admin/service-types/st-2/deactivate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "st-2", store.deactivated[KindServiceType])

	rec = do(http.MethodPost, "/v1/admin/service-types/missing/deactivate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Three saves and one deactivation; rejected writes leave no trail.
	require.Len(t, store.audits, 4)
	assert.Equal(t, audit.ActionCatalogSaved, store.audits[0].Action)
	assert.Equal(t, "anonymous", store.audits[0].Actor)
	assert.Equal(t, audit.ActionCatalogDeactivated, store.audits[3].Action)
}
