package priceoracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledOracleAlwaysMisses(t *testing.T) {
	o := New("")
	assert.False(t, o.Enabled())

	_, ok := o.USDPrice(context.Background(), "ETH")
	assert.False(t, ok)
}

func TestUSDPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price_usd": 2500.5}`))
	}))
	t.Cleanup(srv.Close)

	o := New(srv.URL)
	price, ok := o.USDPrice(context.Background(), "ETH")
	assert.True(t, ok)
	assert.Equal(t, 2500.5, price)
}

func TestUSDPriceNon200Misses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	o := New(srv.URL)
	_, ok := o.USDPrice(context.Background(), "ETH")
	assert.False(t, ok)
}
