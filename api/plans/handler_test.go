package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid/core/results"
)

type memStore struct {
	recs []results.Record
	last results.Query
	err  error
}

func (m *memStore) Append(_ context.Context, r results.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q results.Query) ([]results.Record, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	var res []results.Record
	for _, r := range m.recs {
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func get(h http.Handler, url, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHistoryHandlerFilters(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	require.NoError(t, store.Append(context.Background(), results.Record{RunID: "a", Solver: "pso", Timestamp: ts}))
	require.NoError(t, store.Append(context.Background(), results.Record{RunID: "b", Solver: "cuckoo", Timestamp: ts}))
	h := NewHistoryHandler(store, "tok")

	rr := get(h, Path+"?solver=cuckoo&start=2025-06-01T00:00:00Z&limit=5", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var out []results.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].RunID)
	assert.Equal(t, 5, store.last.Limit)
	assert.True(t, store.last.Start.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	rr = get(h, Path+"?run_id=none", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHistoryHandlerErrors(t *testing.T) {
	store := &memStore{}
	h := NewHistoryHandler(store, "tok")

	assert.Equal(t, http.StatusUnauthorized, get(h, Path, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, Path, "other").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, Path+"?start=yesterday", "tok").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, Path+"?limit=many", "tok").Code)

	req := httptest.NewRequest(http.MethodPost, Path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	store.err = errors.New("disk gone")
	assert.Equal(t, http.StatusInternalServerError, get(h, Path, "tok").Code)
}

func TestHistoryHandlerWithoutToken(t *testing.T) {
	h := NewHistoryHandler(&memStore{}, "")
	assert.Equal(t, http.StatusOK, get(h, Path, "").Code)
}
