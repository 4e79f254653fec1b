package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/scout/indicators"
	"github.com/rustyeddy/scout/market"
)

var log = logrus.WithField("component", "advisor")

// Gateway wraps an Advisor with schema validation, a minimum-confidence
// business filter, a per-call timeout, and a single transport retry.
type Gateway struct {
	advisor       Advisor
	timeout       time.Duration
	minConfidence float64
	recentBars    int
}

func NewGateway(a Advisor, timeout time.Duration, minConfidence float64, recentBars int) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if recentBars <= 0 {
		recentBars = 20
	}
	return &Gateway{
		advisor:       a,
		timeout:       timeout,
		minConfidence: minConfidence,
		recentBars:    recentBars,
	}
}

// Evaluate consults the capability for one symbol. It returns:
//   - (setup, nil) for an accepted setup
//   - (nil, nil) when the capability sees no trade or confidence is below
//     the threshold — a business outcome, not a fault
//   - ErrAdvisoryRejected for schema/content violations (never retried)
//   - ErrAdvisoryUnavailable for transport faults after one retry
func (g *Gateway) Evaluate(ctx context.Context, set indicators.Set, snap *market.Snapshot) (*Setup, error) {
	req := BuildRequest(set, snap, g.recentBars)

	resp, err := g.call(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := validate(resp); err != nil {
		log.WithField("symbol", req.Symbol).Warnf("advisory rejected: %v", err)
		return nil, err
	}

	if resp.Direction == None {
		return nil, nil
	}
	if resp.Confidence < g.minConfidence {
		log.WithField("symbol", req.Symbol).Debugf(
			"setup below confidence threshold: %.2f < %.2f", resp.Confidence, g.minConfidence)
		return nil, nil
	}

	return &Setup{
		Symbol:     req.Symbol,
		Direction:  resp.Direction,
		Entry:      resp.Entry,
		Stop:       resp.Stop,
		Target:     resp.Target,
		Confidence: resp.Confidence,
		Rationale:  resp.Rationale,
		Time:       set.Time,
	}, nil
}

// call invokes the capability with a timeout, retrying exactly once on a
// transport fault. Schema faults surface to the caller untouched and are
// never retried.
func (g *Gateway) call(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.advisor.Advise(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrAdvisoryRejected) {
			return Response{}, err
		}
		lastErr = err
		log.WithField("symbol", req.Symbol).Warnf("advisory attempt %d failed: %v", attempt+1, err)

		// Don't retry when the parent cycle is already cancelled.
		if ctx.Err() != nil {
			break
		}
	}
	return Response{}, fmt.Errorf("%w: %s: %v", ErrAdvisoryUnavailable, req.Symbol, lastErr)
}

// validate enforces the response schema: known direction, confidence in
// [0,1], positive prices, and the stop strictly on the loss side of entry.
func validate(r Response) error {
	if !r.Direction.valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrAdvisoryRejected, r.Direction)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrAdvisoryRejected, r.Confidence)
	}
	if r.Direction == None {
		return nil
	}
	if r.Entry <= 0 || r.Stop <= 0 || r.Target <= 0 {
		return fmt.Errorf("%w: non-positive price (entry=%v stop=%v target=%v)",
			ErrAdvisoryRejected, r.Entry, r.Stop, r.Target)
	}
	if r.Rationale == "" {
		return fmt.Errorf("%w: missing rationale", ErrAdvisoryRejected)
	}
	switch r.Direction {
	case Long:
		if r.Stop >= r.Entry {
			return fmt.Errorf("%w: long stop %v not below entry %v", ErrAdvisoryRejected, r.Stop, r.Entry)
		}
	case Short:
		if r.Stop <= r.Entry {
			return fmt.Errorf("%w: short stop %v not above entry %v", ErrAdvisoryRejected, r.Stop, r.Entry)
		}
	}
	return nil
}
