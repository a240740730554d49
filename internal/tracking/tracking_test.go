package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitbuild/internal/actor"
	"kitbuild/internal/api"
	"kitbuild/internal/apperr"
	"kitbuild/internal/order"
	"kitbuild/internal/progress"
)

type memLinks struct {
	mu    sync.Mutex
	links map[string]Link
	by    []string
}

func (m *memLinks) Insert(_ context.Context, l Link, createdBy string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.NewString()
	m.links[l.Token] = l
	m.by = append(m.by, createdBy)
	return l, nil
}

func (m *memLinks) Resolve(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[token]
	if !ok || l.RevokedAt != nil || !l.ExpiresAt.After(now) {
		return "", apperr.NotFound("tracking link")
	}
	return l.OrderID, nil
}

type orderMap map[string]order.Order

func (m orderMap) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := m[id]
	if !ok {
		return order.Order{}, apperr.NotFound("order")
	}
	return o, nil
}

type entryMap map[string][]progress.Entry

func (m entryMap) ListFor(_ context.Context, orderID string) ([]progress.Entry, error) {
	return m[orderID], nil
}

func ptr(s string) *string { return &s }

var (
	clock  = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	staff  = actor.Actor{ID: "s-1", Role: actor.RoleStaff}
	client = actor.Actor{ID: "c-1", Role: actor.RoleClient}
	other  = actor.Actor{ID: "c-2", Role: actor.RoleClient}
)

func fixture() (*Service, *memLinks) {
	links := &memLinks{links: map[string]Link{}}
	orders := orderMap{
		"o-1": {
			ID:                  "o-1",
			ClientID:            ptr("c-1"),
			Status:              order.StatusInProgress,
			EstimatedPriceCents: 750000,
			EstimatedDays:       8,
			Notes:               "gate code 1234",
			Items: []order.Item{{
				ID: "i-1", OrderID: "o-1", KitName: "RX-78-2", ServiceTypeID: "st-full", ComplexityLevelID: "cl-high",
				LinePriceCents: 750000, LineDays: 8,
			}},
		},
	}
	entries := entryMap{
		"o-1": {
			{ID: "e-1", OrderID: "o-1", Seq: 1, Kind: progress.KindStatusChange, Message: "Order created", Actor: "client:c-1", ActorRole: "client"},
			{ID: "e-2", OrderID: "o-1", Seq: 2, Kind: progress.KindNote, Message: "Primed", Actor: "staff:s-1", ActorRole: "staff"},
		},
	}
	svc := NewService(links, orders, entries, 48*time.Hour)
	svc.Now = func() time.Time { return clock }
	return svc, links
}

func TestCreate_Authorization(t *testing.T) {
	svc, links := fixture()
	ctx := context.Background()

	l, err := svc.Create(ctx, client, "o-1")
	require.NoError(t, err)
	assert.Len(t, l.Token, 64)
	assert.Equal(t, clock.Add(48*time.Hour), l.ExpiresAt)

	_, err = svc.Create(ctx, staff, "o-1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, other, "o-1")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = svc.Create(ctx, staff, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{"client:c-1", "staff:s-1"}, links.by)
}

func TestIssue_ThenViewHidesPrivateFields(t *testing.T) {
	svc, links := fixture()
	ctx := context.Background()

	token, exp, err := svc.Issue(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, clock.Add(48*time.Hour), exp)
	assert.Equal(t, []string{"system:tracking"}, links.by)

	s, err := svc.View(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, order.StatusInProgress, s.Status)
	assert.Equal(t, int64(750000), s.EstimatedPriceCents)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "RX-78-2", s.Items[0].KitName)

	entries, err := svc.Progress(ctx, token)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "Primed", entries[1].Message)
}

func TestView_ExpiredOrUnknownToken(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	token, _, err := svc.Issue(ctx, "o-1")
	require.NoError(t, err)

	svc.Now = func() time.Time { return clock.Add(49 * time.Hour) }
	_, err = svc.View(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Progress(ctx, "deadbeef")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.View(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHandlers(t *testing.T) {
	svc, _ := fixture()
	h := Handlers{Service: svc}

	r := chi.NewRouter()
	r.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(api.WithActor(req.Context(), client)))
		})
	}).Post("/v1/orders/{id}/tracking-link", h.Create)
	r.Get("/v1/track/{token}", h.View)
	r.Get("/v1/track/{token}/progress", h.Progress)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/o-1/tracking-link", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	token, _, err := svc.Issue(context.Background(), "o-1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/track/"+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"in_progress"`)
	assert.NotContains(t, body, "c-1")
	assert.NotContains(t, body, "gate code")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/track/"+token+"/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Primed"`)
	assert.NotContains(t, rec.Body.String(), "staff:s-1")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/track/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
