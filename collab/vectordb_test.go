package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPVectorDBAddAndQuery(t *testing.T) {
	var gotAdd addRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/findings/add":
			if err := json.NewDecoder(r.Body).Decode(&gotAdd); err != nil {
				t.Errorf("decode add request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		case "/collections/findings/query":
			var q queryRequest
			if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
				t.Errorf("decode query request: %v", err)
			}
			if q.TopK != 2 {
				t.Errorf("top_k = %d, want 2", q.TopK)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"matches": []map[string]any{
					{"id": "v1", "distance": 0.12},
					{"id": "v2", "distance": 0.48},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewHTTPVectorDBAdapter(srv.URL, time.Second, 5*time.Second)

	embedding := []float32{0.1, 0.2, 0.3}
	if err := a.Add(context.Background(), "findings", "v1", "SQL injection on /login", embedding); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if gotAdd.ID != "v1" || len(gotAdd.Embedding) != 3 {
		t.Errorf("server saw add request %+v", gotAdd)
	}

	matches, err := a.QueryNearest(context.Background(), "findings", embedding, 2)
	if err != nil {
		t.Fatalf("QueryNearest: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "v1" || matches[0].Distance != 0.12 {
		t.Errorf("unexpected matches %+v", matches)
	}
}

func TestHTTPVectorDBErrorStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPVectorDBAdapter(srv.URL, time.Second, 5*time.Second)
	err := a.Add(context.Background(), "findings", "v1", "doc", []float32{0.1})
	if !errors.Is(err, ErrVectorDbUnavailable) {
		t.Fatalf("expected ErrVectorDbUnavailable, got %v", err)
	}
}

func TestHTTPVectorDBDeleteCollectionIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		// The collection is already gone; delete is idempotent.
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewHTTPVectorDBAdapter(srv.URL, time.Second, 5*time.Second)
	if err := a.DeleteCollection(context.Background(), "stale"); err != nil {
		t.Fatalf("expected delete of a missing collection to succeed, got %v", err)
	}
}

func TestHTTPVectorDBConnectionRefused(t *testing.T) {
	a := NewHTTPVectorDBAdapter("http://127.0.0.1:1", time.Second, time.Second)
	_, err := a.QueryNearest(context.Background(), "findings", []float32{0.1}, 1)
	if !errors.Is(err, ErrVectorDbUnavailable) {
		t.Fatalf("expected ErrVectorDbUnavailable for a dead endpoint, got %v", err)
	}
}
