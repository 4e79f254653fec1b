package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scout/indicators"
	"github.com/rustyeddy/scout/market"
)

// scriptedAdvisor returns canned results in order and counts calls.
type scriptedAdvisor struct {
	calls     int
	responses []Response
	errs      []error
}

func (s *scriptedAdvisor) Advise(ctx context.Context, req Request) (Response, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], s.errs[i]
}

func testSet() indicators.Set {
	return indicators.Set{
		Symbol: "ACME",
		Time:   time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		RSI:    28,
		VWAP:   99,
		SMA:    100,
		EMA:    100.5,
		ATR:    1.2,
	}
}

func testSnap() *market.Snapshot {
	return &market.Snapshot{
		Symbol: "ACME",
		Quote:  market.Quote{Symbol: "ACME", Price: 100},
		Bars:   []market.Bar{{Close: 100, High: 101, Low: 99, Volume: 1000}},
	}
}

func goodLong() Response {
	return Response{
		Direction:  Long,
		Entry:      100,
		Stop:       98.5,
		Target:     103,
		Confidence: 0.8,
		Rationale:  "oversold bounce above vwap",
	}
}

func TestEvaluateAcceptsValidSetup(t *testing.T) {
	adv := &scriptedAdvisor{responses: []Response{goodLong()}, errs: []error{nil}}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.Equal(t, "ACME", setup.Symbol)
	assert.Equal(t, Long, setup.Direction)
	assert.Equal(t, 98.5, setup.Stop)
	assert.Equal(t, 0.8, setup.Confidence)
	assert.Equal(t, 1, adv.calls)
}

func TestEvaluateNoneIsNotASetup(t *testing.T) {
	adv := &scriptedAdvisor{
		responses: []Response{{Direction: None, Rationale: "chop"}},
		errs:      []error{nil},
	}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	require.NoError(t, err)
	assert.Nil(t, setup)
}

func TestEvaluateLowConfidenceDiscarded(t *testing.T) {
	resp := goodLong()
	resp.Confidence = 0.4
	adv := &scriptedAdvisor{responses: []Response{resp}, errs: []error{nil}}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	require.NoError(t, err)
	assert.Nil(t, setup, "confidence 0.4 must not pass a 0.6 threshold")
}

func TestEvaluateSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Response)
	}{
		{"unknown direction", func(r *Response) { r.Direction = "sideways" }},
		{"confidence above one", func(r *Response) { r.Confidence = 1.4 }},
		{"negative confidence", func(r *Response) { r.Confidence = -0.1 }},
		{"zero entry", func(r *Response) { r.Entry = 0 }},
		{"missing rationale", func(r *Response) { r.Rationale = "" }},
		{"long stop above entry", func(r *Response) { r.Stop = 101 }},
		{"long stop at entry", func(r *Response) { r.Stop = 100 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := goodLong()
			tt.mutate(&resp)
			adv := &scriptedAdvisor{responses: []Response{resp}, errs: []error{nil}}
			g := NewGateway(adv, time.Second, 0.6, 20)

			setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
			assert.Nil(t, setup)
			assert.ErrorIs(t, err, ErrAdvisoryRejected)
			assert.Equal(t, 1, adv.calls, "schema faults must never be retried")
		})
	}
}

func TestEvaluateShortStopMustBeAboveEntry(t *testing.T) {
	resp := Response{
		Direction:  Short,
		Entry:      100,
		Stop:       99, // wrong side for a short
		Target:     95,
		Confidence: 0.9,
		Rationale:  "rejection at vwap",
	}
	adv := &scriptedAdvisor{responses: []Response{resp}, errs: []error{nil}}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	assert.Nil(t, setup)
	assert.ErrorIs(t, err, ErrAdvisoryRejected)
}

func TestEvaluateRetriesTransportFaultOnce(t *testing.T) {
	adv := &scriptedAdvisor{
		responses: []Response{{}, goodLong()},
		errs:      []error{errors.New("connection refused"), nil},
	}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.Equal(t, 2, adv.calls)
}

func TestEvaluateGivesUpAfterSecondTransportFault(t *testing.T) {
	adv := &scriptedAdvisor{
		responses: []Response{{}, {}},
		errs:      []error{errors.New("timeout"), errors.New("timeout")},
	}
	g := NewGateway(adv, time.Second, 0.6, 20)

	setup, err := g.Evaluate(context.Background(), testSet(), testSnap())
	assert.Nil(t, setup)
	assert.ErrorIs(t, err, ErrAdvisoryUnavailable)
	assert.Equal(t, 2, adv.calls, "exactly one retry, never more")
}

func TestEvaluateNoRetryWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adv := &scriptedAdvisor{
		responses: []Response{{}},
		errs:      []error{errors.New("dial interrupted")},
	}
	g := NewGateway(adv, time.Second, 0.6, 20)
	cancel()

	_, err := g.Evaluate(ctx, testSet(), testSnap())
	assert.ErrorIs(t, err, ErrAdvisoryUnavailable)
	assert.Equal(t, 1, adv.calls)
}

func TestBuildRequestBoundsRecentBars(t *testing.T) {
	snap := testSnap()
	for i := 0; i < 50; i++ {
		snap.Bars = append(snap.Bars, market.Bar{Close: float64(100 + i)})
	}

	req := BuildRequest(testSet(), snap, 20)
	assert.Len(t, req.RecentBars, 20)
	assert.Equal(t, 100.0, req.Price)
	assert.Equal(t, 28.0, req.RSI)
}

func TestStubAdvisorDeterministic(t *testing.T) {
	req := Request{Symbol: "ACME", Price: 100, RSI: 25, VWAP: 99, ATR: 1.5}
	first, err := StubAdvisor{}.Advise(context.Background(), req)
	require.NoError(t, err)
	second, err := StubAdvisor{}.Advise(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, Long, first.Direction)
	assert.Equal(t, 98.5, first.Stop)
	assert.Equal(t, 103.0, first.Target)
	require.NoError(t, validate(first), "stub output must satisfy the schema")
}

func TestStubAdvisorNoEdge(t *testing.T) {
	resp, err := StubAdvisor{}.Advise(context.Background(), Request{
		Symbol: "ACME", Price: 100, RSI: 50, VWAP: 100, ATR: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, None, resp.Direction)
}
