package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"okx-stoch-sentry/pkg/types"
)

func TestBarCode(t *testing.T) {
	tests := []struct {
		granularity types.Granularity
		want        string
		wantErr     bool
	}{
		{types.Granularity1m, "1m", false},
		{types.Granularity30m, "30m", false},
		{types.Granularity1h, "1H", false},
		{types.Granularity4h, "4H", false},
		{types.Granularity1d, "1D", false},
		{types.Granularity1w, "1W", false},
		{types.Granularity("6h"), "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			got, err := BarCode(tt.granularity)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOKXClient_Candles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/candles", r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.Equal(t, "1H", r.URL.Query().Get("bar"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		// 从新到旧，含一根重复
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
			["1704074400000","102","103","101","102.5","10","0","0","0"],
			["1704070800000","101","102","100","101.5","11","0","0","1"],
			["1704070800000","101","102","100","101.5","11","0","0","1"],
			["1704067200000","100","101","99","100.5","12","0","0","1"]
		]}`))
	}))
	defer server.Close()

	client := NewOKXClient(server.URL, server.Client())
	klines, err := client.Candles(context.Background(), "BTC-USDT-SWAP", types.Granularity1h, 3)

	require.NoError(t, err)
	require.Len(t, klines, 3)
	assert.Equal(t, time.UnixMilli(1704067200000), klines[0].OpenTime)
	assert.Equal(t, time.UnixMilli(1704074400000), klines[2].OpenTime)
	assert.Equal(t, 100.5, klines[0].Close)
	assert.Equal(t, 103.0, klines[2].High)
	assert.Equal(t, 12.0, klines[0].Volume)
}

func TestOKXClient_RateLimited(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http 429", http.StatusTooManyRequests, `{"code":"50011","msg":"Too Many Requests"}`},
		{"okx code 50011", http.StatusOK, `{"code":"50011","msg":"Requests too frequent.","data":[]}`},
		{"text marker", http.StatusOK, `Too Many Requests`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOKXClient(server.URL, server.Client())
			_, err := client.Candles(context.Background(), "BTC-USDT-SWAP", types.Granularity1m, 200)
			assert.ErrorIs(t, err, types.ErrRateLimited)
		})
	}
}

func TestOKXClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer server.Close()

	client := NewOKXClient(server.URL, server.Client())
	_, err := client.Candles(context.Background(), "NOPE-USDT-SWAP", types.Granularity1m, 200)

	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrRateLimited)
	assert.Contains(t, err.Error(), "51001")
}

func TestOKXClient_InstrumentsAndTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		switch r.URL.Path {
		case "/api/v5/public/instruments":
			_, _ = w.Write([]byte(`{"code":"0","data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP","settleCcy":"USDT","state":"live","listTime":"1606468572000"}]}`))
		case "/api/v5/market/tickers":
			_, _ = w.Write([]byte(`{"code":"0","data":[{"instId":"BTC-USDT-SWAP","last":"43000","open24h":"42000","volCcy24h":"1000","ts":"1704067200000"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewOKXClient(server.URL+"/", server.Client())

	instruments, err := client.Instruments(context.Background(), "SWAP")
	require.NoError(t, err)
	require.Len(t, instruments, 1)
	assert.Equal(t, "USDT", instruments[0].SettleCcy)

	tickers, err := client.Tickers(context.Background(), "SWAP")
	require.NoError(t, err)
	require.Len(t, tickers, 1)
	assert.Equal(t, "1000", tickers[0].VolCcy24h)
}
