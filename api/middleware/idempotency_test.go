package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type fakeIdempotencyStore struct {
	data map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: make(map[string]string)}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

// newOrdersRouter mounts the idempotency middleware the way the real router
// does, inline on the route so the full pattern is known.
func newOrdersRouter(store *fakeIdempotencyStore, status int, calls *int) http.Handler {
	r := chi.NewRouter()
	r.With(Idempotency(store, nil)).Post("/api/v1/orders", func(w http.ResponseWriter, req *http.Request) {
		*calls++
		body, _ := io.ReadAll(req.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d,"echo":%q}`, *calls, string(body))
	})
	r.Get("/api/v1/orders", func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func postOrder(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = req.WithContext(WithIdentity(req.Context(), uuid.MustParse("00000000-0000-0000-0000-000000000001"), enums.UserRoleCustomer))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{http.MethodDelete, "/api/v1/orders/{orderId}/cancel", criticalIdempotencyTTL, true},
		{http.MethodPatch, "/api/v1/orders/admin/{orderId}/status", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/cart/items", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/orders", 0, false},
		{http.MethodPost, "/api/v1/products", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		assert.Equalf(t, tt.ok, ok, "%s %s", tt.method, tt.pattern)
		assert.Equal(t, tt.want, ttl)
	}
}

func TestIdempotencyRequiresKey(t *testing.T) {
	calls := 0
	h := newOrdersRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)
	resp := postOrder(t, h, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	h := newOrdersRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)

	first := postOrder(t, h, "k1", `{"notes":"x"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	second := postOrder(t, h, "k1", `{"notes":"x"}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotencyRejectsBodyMismatchAndInFlight(t *testing.T) {
	calls := 0
	store := newFakeIdempotencyStore()
	h := newOrdersRouter(store, http.StatusCreated, &calls)

	require.Equal(t, http.StatusCreated, postOrder(t, h, "k1", `{"notes":"a"}`).Code)
	resp := postOrder(t, h, "k1", `{"notes":"b"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), "IDEMPOTENCY_KEY_REUSED")

	// a claimed key without a stored response is still running
	for k := range store.data {
		store.data[k] = `{"in_flight":true,"status":0,"body":"","request_hash":"` + hashBody([]byte(`{"notes":"a"}`)) + `"}`
	}
	resp = postOrder(t, h, "k1", `{"notes":"a"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnRetryableFailure(t *testing.T) {
	calls := 0
	store := newFakeIdempotencyStore()
	h := newOrdersRouter(store, http.StatusConflict, &calls)

	postOrder(t, h, "k1", `{}`)
	postOrder(t, h, "k1", `{}`)
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	calls := 0
	h := newOrdersRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, calls)
}
