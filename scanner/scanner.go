// Package scanner reduces a symbol universe to the candidates worth
// analyzing. Scan is a pure function of its inputs: identical universe and
// quotes always produce the identical, identically-ordered output.
package scanner

import (
	"sort"

	"github.com/rustyeddy/scout/market"
)

// Filters are the liquidity and price screens a candidate must pass.
type Filters struct {
	MinPrice     float64
	MaxPrice     float64
	MinVolume    float64
	MinRelVolume float64
	MaxSymbols   int
}

// Candidate is a symbol that passed all screens, with the relative volume
// used for ranking.
type Candidate struct {
	Symbol    string
	Price     float64
	RelVolume float64
}

// Scan applies every screen to the universe and returns candidates ordered
// by relative volume descending (alphabetical tie-break), truncated to
// MaxSymbols. Symbols missing from quotes are excluded, not errors.
func Scan(universe []string, quotes map[string]market.Quote, f Filters) []Candidate {
	candidates := make([]Candidate, 0, len(universe))
	for _, symbol := range universe {
		if !validSymbol(symbol) {
			continue
		}
		q, ok := quotes[symbol]
		if !ok {
			continue
		}
		rel := q.RelVolume()
		if !passes(q, rel, f) {
			continue
		}
		candidates = append(candidates, Candidate{
			Symbol:    symbol,
			Price:     q.Price,
			RelVolume: rel,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RelVolume != candidates[j].RelVolume {
			return candidates[i].RelVolume > candidates[j].RelVolume
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	if f.MaxSymbols > 0 && len(candidates) > f.MaxSymbols {
		candidates = candidates[:f.MaxSymbols]
	}
	return candidates
}

func passes(q market.Quote, relVolume float64, f Filters) bool {
	if q.Price < f.MinPrice || q.Price > f.MaxPrice {
		return false
	}
	if q.Volume < f.MinVolume {
		return false
	}
	if relVolume < f.MinRelVolume {
		return false
	}
	return true
}

// validSymbol keeps plain US equity tickers: 1-5 uppercase letters.
func validSymbol(s string) bool {
	if len(s) == 0 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Symbols returns just the ordered symbol names of a candidate list.
func Symbols(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Symbol
	}
	return out
}
