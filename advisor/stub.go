package advisor

import (
	"context"
	"fmt"
)

// StubAdvisor is a deterministic rule-based capability used in tests and dry
// runs. Identical requests always produce identical responses, which makes
// the whole gateway pipeline reproducible.
//
// Rules: RSI under 30 with price above VWAP proposes a long; RSI over 70
// with price below VWAP proposes a short. Stops are one ATR from entry,
// targets two ATRs. Confidence scales with how far RSI is into its extreme.
type StubAdvisor struct{}

func (StubAdvisor) Advise(ctx context.Context, req Request) (Response, error) {
	if req.ATR <= 0 || req.Price <= 0 {
		return Response{Direction: None, Rationale: "insufficient data"}, nil
	}

	switch {
	case req.RSI <= 30 && req.Price > req.VWAP:
		conf := 0.5 + (30-req.RSI)/60 // 0.5 at RSI 30, 1.0 at RSI 0
		return Response{
			Direction:  Long,
			Entry:      req.Price,
			Stop:       req.Price - req.ATR,
			Target:     req.Price + 2*req.ATR,
			Confidence: clamp(conf),
			Rationale:  fmt.Sprintf("oversold RSI %.1f holding above VWAP", req.RSI),
		}, nil

	case req.RSI >= 70 && req.Price < req.VWAP:
		conf := 0.5 + (req.RSI-70)/60
		return Response{
			Direction:  Short,
			Entry:      req.Price,
			Stop:       req.Price + req.ATR,
			Target:     req.Price - 2*req.ATR,
			Confidence: clamp(conf),
			Rationale:  fmt.Sprintf("overbought RSI %.1f failing below VWAP", req.RSI),
		}, nil
	}

	return Response{Direction: None, Rationale: "no edge"}, nil
}

func clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
