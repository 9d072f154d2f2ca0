package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPVectorDBAdapter implements VectorDBAdapter against a JSON/HTTP vector
// database (e.g. a local Chroma or Qdrant-compatible server), using a
// connect/read timeout split: a short connect timeout so a dead server
// fails fast, and a longer read timeout for large similarity queries.
type HTTPVectorDBAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVectorDBAdapter builds an adapter against baseURL (e.g.
// "http://localhost:8000"). connectTimeout bounds dialing; readTimeout
// bounds the full round trip.
func NewHTTPVectorDBAdapter(baseURL string, connectTimeout, readTimeout time.Duration) *HTTPVectorDBAdapter {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	return &HTTPVectorDBAdapter{
		baseURL: baseURL,
		client:  &http.Client{Transport: transport, Timeout: readTimeout},
	}
}

type addRequest struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Embedding []float32 `json:"embedding"`
}

// Add inserts a document's embedding into collection.
func (a *HTTPVectorDBAdapter) Add(ctx context.Context, collection, id, doc string, embedding []float32) error {
	body, err := json.Marshal(addRequest{ID: id, Document: doc, Embedding: embedding})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrVectorDbUnavailable, err)
	}
	url := fmt.Sprintf("%s/collections/%s/add", a.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrVectorDbUnavailable, resp.StatusCode, string(b))
	}
	return nil
}

type queryRequest struct {
	Embedding []float32 `json:"embedding"`
	TopK      int       `json:"top_k"`
}

type queryResponse struct {
	Matches []struct {
		ID       string  `json:"id"`
		Distance float64 `json:"distance"`
	} `json:"matches"`
}

// QueryNearest returns the topK nearest documents to embedding in collection.
func (a *HTTPVectorDBAdapter) QueryNearest(ctx context.Context, collection string, embedding []float32, topK int) ([]NearestMatch, error) {
	body, err := json.Marshal(queryRequest{Embedding: embedding, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrVectorDbUnavailable, err)
	}
	url := fmt.Sprintf("%s/collections/%s/query", a.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrVectorDbUnavailable, resp.StatusCode, string(b))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrVectorDbUnavailable, err)
	}
	out := make([]NearestMatch, 0, len(qr.Matches))
	for _, m := range qr.Matches {
		out = append(out, NearestMatch{ID: m.ID, Distance: m.Distance})
	}
	return out, nil
}

// DeleteCollection removes a named collection entirely.
func (a *HTTPVectorDBAdapter) DeleteCollection(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/collections/%s", a.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrVectorDbUnavailable, resp.StatusCode, string(b))
	}
	return nil
}
