// Package plans serves stored planning runs over HTTP.
package plans

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/microgrid/core/results"
)

// Path is the route the handler is mounted on.
const Path = "/api/plans"

// NewHistoryHandler returns an HTTP handler exposing stored runs via GET /api/plans.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
// Supported query parameters: start and end (RFC3339), solver, run_id, limit.
func NewHistoryHandler(store results.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []results.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (results.Query, error) {
	v := r.URL.Query()
	q := results.Query{Solver: v.Get("solver"), RunID: v.Get("run_id")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	return q, nil
}
