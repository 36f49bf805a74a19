package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/media-rental/internal/config"
	"github.com/iliyamo/media-rental/internal/dto"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ClientConfig{BaseURL: srv.URL + "/", Token: "tok", Timeout: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestValidationFailsBeforeRequest(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	_, err := c.CreateClass(context.Background(), dto.ClassInput{Name: "Lançamento", Value: decimal.NewFromInt(5), ReturnDays: 9})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "%v", err)
	assert.Contains(t, verr.Fields, "ReturnDays: max=7")
	assert.Zero(t, hits.Load())
}

func TestErrorTaxonomy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /v1/rentals/1/payment", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not_yet_returned", "message": "rental has not been returned yet"})
	})
	mux.HandleFunc("GET /v1/rentals/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "rental not found"})
	})
	mux.HandleFunc("DELETE /v1/rentals/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": "internal error"})
	})
	mux.HandleFunc("POST /v1/actors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_error", "message": "Name: min=2; Name: max=100"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.ConfirmPayment(ctx, 1)
	var cerr *ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "not_yet_returned", cerr.Code)

	_, err = c.Rental(ctx, 2)
	var nerr *NotFoundError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "rental not found", nerr.Message)

	err = c.DeleteRental(ctx, 3)
	var neterr *NetworkError
	require.True(t, errors.As(err, &neterr))
	assert.Equal(t, http.StatusInternalServerError, neterr.Status)

	_, err = c.CreateActor(ctx, dto.NameInput{Name: "Selton Mello"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.Rentals(context.Background(), ListParams{})
	var neterr *NetworkError
	require.True(t, errors.As(err, &neterr))
	assert.Zero(t, neterr.Status)
	assert.Equal(t, "GET /v1/rentals", neterr.Op)
}

func TestCancelledIsNotNetworkError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Rentals(ctx, ListParams{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/rentals", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}, "total": 0, "page": 2, "page_size": 50})
	})
	mux.HandleFunc("PATCH /v1/rentals/4/return", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Nil(t, body["actual_return_date"])
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 4, "status": "RETURNED", "actual_return_date": "2024-01-10"}})
	})
	c := newTestClient(t, mux)

	page, err := c.Rentals(context.Background(), ListParams{Status: "open", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)

	r, err := c.ReturnRental(context.Background(), 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", r.ActualReturn.Format())
}
