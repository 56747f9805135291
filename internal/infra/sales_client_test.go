package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesClient_Totals(t *testing.T) {
	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	to := from.Add(8 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/branches/7/sales/totals", r.URL.Path)
		assert.Equal(t, from.Format(time.RFC3339Nano), r.URL.Query().Get("from"))
		assert.Equal(t, to.Format(time.RFC3339Nano), r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subtotal":"300.00","service_fee":"30.00","transaction_count":12,"order_count":9}`))
	}))
	defer srv.Close()

	c := NewSalesClient(srv.URL+"/", time.Second, nil)
	got, err := c.Totals(context.Background(), 7, from, to)
	require.NoError(t, err)

	assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("300")))
	assert.True(t, got.ServiceFee.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, 12, got.TransactionCount)
	assert.Equal(t, 9, got.OrderCount)
}

func TestSalesClient_ServerErrorTripsBreaker(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "sales-test", FailureThreshold: 2, OpenTimeout: time.Minute})
	c := NewSalesClient(srv.URL, time.Second, cb)
	now := time.Now()

	for i := 0; i < 2; i++ {
		_, err := c.Totals(context.Background(), 7, now.Add(-time.Hour), now)
		assert.Error(t, err)
	}
	_, err := c.Totals(context.Background(), 7, now.Add(-time.Hour), now)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, hits)
}

func TestSalesClient_RejectsNegativeTotals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subtotal":"-1.00","service_fee":"0","transaction_count":1,"order_count":1}`))
	}))
	defer srv.Close()

	c := NewSalesClient(srv.URL, time.Second, nil)
	_, err := c.Totals(context.Background(), 7, time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}
