// Package data provides concrete market.SnapshotSource implementations:
// a live Yahoo Finance client and a deterministic replay source for tests
// and dry runs.
package data

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/scout/market"
)

var log = logrus.WithField("component", "marketdata")

// YahooSource pulls the candidate universe from Yahoo's predefined screeners
// and per-symbol bars from the chart API.
type YahooSource struct {
	client   *resty.Client
	screens  []string
	barRange string
	interval string
}

func NewYahooSource(timeout time.Duration) *YahooSource {
	client := resty.New()
	client.SetBaseURL("https://query1.finance.yahoo.com")
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0")

	return &YahooSource{
		client:   client,
		screens:  []string{"day_gainers", "most_actives"},
		barRange: "1d",
		interval: "1m",
	}
}

type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol string `json:"symbol"`
			} `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice      float64 `json:"regularMarketPrice"`
				RegularMarketVolume     float64 `json:"regularMarketVolume"`
				AverageDailyVolume10Day float64 `json:"averageDailyVolume10Day"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Universe returns the deduplicated union of all configured screeners,
// sorted for stable downstream ordering.
func (y *YahooSource) Universe(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, screen := range y.screens {
		var out screenerResponse
		resp, err := y.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"scrIds": screen,
				"count":  "100",
			}).
			SetResult(&out).
			Get("/v1/finance/screener/predefined/saved")
		if err != nil {
			return nil, fmt.Errorf("screener %s: %w", screen, err)
		}
		if resp.StatusCode() != 200 {
			log.Warnf("screener %s returned status %d, skipping", screen, resp.StatusCode())
			continue
		}
		for _, r := range out.Finance.Result {
			for _, q := range r.Quotes {
				seen[q.Symbol] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("universe: no symbols from any screener")
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (y *YahooSource) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	snap, err := y.GetSnapshot(ctx, symbol)
	if err != nil {
		return market.Quote{}, err
	}
	return snap.Quote, nil
}

func (y *YahooSource) GetSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	var out chartResponse
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    y.barRange,
			"interval": y.interval,
		}).
		SetResult(&out).
		Get("/v8/finance/chart/" + symbol)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 || out.Chart.Error != nil || len(out.Chart.Result) == 0 {
		return nil, market.ErrNoData
	}

	res := out.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, market.ErrNoData
	}
	q := res.Indicators.Quote[0]

	bars := make([]market.Bar, 0, len(res.Timestamp))
	var sessionVol float64
	for i, ts := range res.Timestamp {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) || i >= len(q.Volume) {
			break
		}
		// Yahoo pads incomplete bars with zeros; drop them.
		if q.Close[i] == 0 {
			continue
		}
		bars = append(bars, market.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   q.Open[i],
			High:   q.High[i],
			Low:    q.Low[i],
			Close:  q.Close[i],
			Volume: q.Volume[i],
		})
		sessionVol += q.Volume[i]
	}
	if len(bars) == 0 {
		return nil, market.ErrNoData
	}

	now := bars[len(bars)-1].Time
	return &market.Snapshot{
		Symbol: symbol,
		Bars:   bars,
		Quote: market.Quote{
			Symbol:    symbol,
			Time:      now,
			Price:     res.Meta.RegularMarketPrice,
			Volume:    sessionVol,
			AvgVolume: res.Meta.AverageDailyVolume10Day,
		},
		Time: now,
	}, nil
}
