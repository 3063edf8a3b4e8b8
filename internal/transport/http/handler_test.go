package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-track/ingestion/internal/auth"
	"fleet-track/ingestion/internal/config"
	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/pipeline"
)

type stubStore struct {
	insertErr error
	inserted  []*domain.Event
}

func (s *stubStore) InsertEvent(_ context.Context, ev *domain.Event) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, ev)
	return nil
}

func (s *stubStore) UpdateEventFields(context.Context, *domain.Event, []string) error { return nil }
func (s *stubStore) UpdateAssetFields(context.Context, *domain.Asset, []string) error { return nil }
func (s *stubStore) PreviousEvent(context.Context, string, string, int64, []domain.StatusCode, bool) (*domain.Event, error) {
	return nil, nil
}

type stubAssets struct {
	asset *domain.Asset
	err   error
}

func (s *stubAssets) GetAsset(context.Context, string, string) (*domain.Asset, error) {
	return s.asset, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestHandler(st *stubStore, assets *stubAssets) *IngestHandler {
	pipe := pipeline.New(pipeline.Config{}, pipeline.Deps{Store: st, Log: discardLogger()})
	return NewIngestHandler(pipe, assets, discardLogger())
}

func boundRequest(method, body string) *http.Request {
	r := httptest.NewRequest(method, "/v1/events", strings.NewReader(body))
	ctx := context.WithValue(r.Context(), bindingKey, auth.Binding{AccountID: "acme", AssetID: "truck-1"})
	return r.WithContext(ctx)
}

const validBody = `{"timestamp":1700000000,"status_code":61472,"latitude":35.0,"longitude":-120.0,"speed_kph":80}`

func TestIngestHandlerAccepts(t *testing.T) {
	st := &stubStore{}
	h := newTestHandler(st, &stubAssets{asset: &domain.Asset{AccountID: "acme", AssetID: "truck-1"}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, st.inserted, 1)
	ev := st.inserted[0]
	assert.Equal(t, "acme", ev.AccountID)
	assert.Equal(t, "truck-1", ev.AssetID)
	assert.Equal(t, domain.StatusLocation, ev.StatusCode)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestIngestHandlerRejectsBadTimestamp(t *testing.T) {
	st := &stubStore{}
	h := newTestHandler(st, &stubAssets{asset: &domain.Asset{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, `{"timestamp":0,"status_code":61472}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, st.inserted)
}

func TestIngestHandlerMalformedJSON(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubAssets{asset: &domain.Asset{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, `{"timestamp":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubAssets{asset: &domain.Asset{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodGet, ""))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestIngestHandlerNoBinding(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubAssets{asset: &domain.Asset{}})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(validBody))
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestHandlerUnknownAsset(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubAssets{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestHandlerAssetLoadError(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubAssets{err: errors.New("db down")})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIngestHandlerInsertFailure(t *testing.T) {
	h := newTestHandler(&stubStore{insertErr: errors.New("connection reset")},
		&stubAssets{asset: &domain.Asset{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIngestHandlerSerializesPerAsset(t *testing.T) {
	// Concurrent requests for the same asset must take turns through the
	// pipeline: the aggregate and the store see one ingest at a time.
	st := &stubStore{}
	asset := &domain.Asset{AccountID: "acme", AssetID: "truck-1"}
	h := newTestHandler(st, &stubAssets{asset: asset})

	const n = 16
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusAccepted, code, "request %d", i)
	}
	assert.Len(t, st.inserted, n)
	assert.Equal(t, 35.0, asset.LastValidLatitude)
}

func TestIngestHandlerCachesAsset(t *testing.T) {
	st := &stubStore{}
	asset := &domain.Asset{AccountID: "acme", AssetID: "truck-1"}
	h := newTestHandler(st, &stubAssets{asset: asset})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, boundRequest(http.MethodPost, validBody))
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	// Both requests must have mutated the same cached aggregate.
	assert.Equal(t, 35.0, asset.LastValidLatitude)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{ValidAPIKeys: []string{"good-key=acme/truck-1"}}
	mw := NewAuthMiddleware(auth.NewAuthenticator(cfg, nil))

	var gotBinding auth.Binding
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := BindingFromContext(r.Context())
		require.True(t, ok)
		gotBinding = b
		w.WriteHeader(http.StatusOK)
	})
	wrapped := mw.Wrap(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	wrapped.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing header")

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("X-API-Key", "bad-key")
	wrapped.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown key")

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("X-API-Key", "good-key")
	wrapped.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, auth.Binding{AccountID: "acme", AssetID: "truck-1"}, gotBinding)
}
