package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scout/market"
)

func newTestSource(t *testing.T, handler http.Handler) *YahooSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	y := NewYahooSource(5 * time.Second)
	y.client.SetBaseURL(server.URL)
	return y
}

func TestUniverseMergesAndSortsScreeners(t *testing.T) {
	calls := 0
	y := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/finance/screener/predefined/saved", r.URL.Path)
		calls++
		body := `{"finance":{"result":[{"quotes":[{"symbol":"ZZZ"},{"symbol":"AAA"}]}]}}`
		if r.URL.Query().Get("scrIds") == "most_actives" {
			body = `{"finance":{"result":[{"quotes":[{"symbol":"MMM"},{"symbol":"AAA"}]}]}}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))

	universe, err := y.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, universe)
	assert.Equal(t, 2, calls)
}

func TestUniverseEmptyIsError(t *testing.T) {
	y := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"finance":{"result":[]}}`))
	}))

	_, err := y.Universe(context.Background())
	assert.Error(t, err)
}

func TestGetSnapshotParsesChart(t *testing.T) {
	y := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/ACME", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"result":[{
			"meta":{"regularMarketPrice":25.5,"regularMarketVolume":300000,"averageDailyVolume10Day":100000},
			"timestamp":[1748874600,1748874660,1748874720],
			"indicators":{"quote":[{
				"open":[25.0,25.1,0],
				"high":[25.2,25.3,0],
				"low":[24.9,25.0,0],
				"close":[25.1,25.2,0],
				"volume":[1000,2000,0]
			}]}
		}]}}`))
	}))

	snap, err := y.GetSnapshot(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", snap.Symbol)
	require.Len(t, snap.Bars, 2, "zero-close padding bars must be dropped")
	assert.Equal(t, 25.1, snap.Bars[0].Close)
	assert.Equal(t, 25.5, snap.Quote.Price)
	assert.Equal(t, 3000.0, snap.Quote.Volume)
	assert.Equal(t, 100000.0, snap.Quote.AvgVolume)
	assert.InDelta(t, 0.03, snap.Quote.RelVolume(), 1e-9)
}

func TestGetSnapshotChartError(t *testing.T) {
	y := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found","description":"no data"}}}`))
	}))

	_, err := y.GetSnapshot(context.Background(), "GONE")
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestGetSnapshotHTTPFailure(t *testing.T) {
	y := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := y.GetSnapshot(context.Background(), "ACME")
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestReplaySource(t *testing.T) {
	r := NewReplaySource()
	snap := &market.Snapshot{
		Symbol: "ACME",
		Quote:  market.Quote{Symbol: "ACME", Price: 10},
	}
	r.Load(snap)

	universe, err := r.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, universe)

	got, err := r.GetSnapshot(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = r.GetQuote(context.Background(), "GONE")
	assert.ErrorIs(t, err, market.ErrNoData)

	open, err := r.IsOpen(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, open)

	r.SetOpen(false)
	open, _ = r.IsOpen(context.Background(), time.Now())
	assert.False(t, open)
}
