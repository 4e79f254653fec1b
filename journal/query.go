package journal

import (
	"fmt"
	"time"
)

// ListEventsByPosition returns a position's full event sequence in time
// order.
func (j *SQLite) ListEventsByPosition(positionID string) ([]TradeEvent, error) {
	return j.list(`
		SELECT event_id, position_id, symbol, kind, time, direction, quantity, price, stop, target, realized_pl, reason
		FROM trade_events
		WHERE position_id = ?
		ORDER BY time ASC, event_id ASC`, positionID)
}

// ListEventsBetween returns events with time in [start, end).
func (j *SQLite) ListEventsBetween(start, end time.Time) ([]TradeEvent, error) {
	return j.list(`
		SELECT event_id, position_id, symbol, kind, time, direction, quantity, price, stop, target, realized_pl, reason
		FROM trade_events
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, event_id ASC`, start, end)
}

func (j *SQLite) list(query string, args ...any) ([]TradeEvent, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeEvent
	for rows.Next() {
		var e TradeEvent
		var kind string
		if err := rows.Scan(
			&e.EventID, &e.PositionID, &e.Symbol, &kind, &e.Time,
			&e.Direction, &e.Quantity, &e.Price, &e.Stop, &e.Target,
			&e.RealizedPL, &e.Reason,
		); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Report aggregates closed-trade performance over a window.
type Report struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // percent
	NetPL       float64
	AvgPL       float64
	LargestWin  float64
	LargestLoss float64
}

// BuildReport summarizes close events with time in [start, end).
func (j *SQLite) BuildReport(start, end time.Time) (Report, error) {
	events, err := j.ListEventsBetween(start, end)
	if err != nil {
		return Report{}, err
	}

	var r Report
	for _, e := range events {
		if e.Kind != EventClose {
			continue
		}
		r.TotalTrades++
		r.NetPL += e.RealizedPL
		if e.RealizedPL >= 0 {
			r.Wins++
			if e.RealizedPL > r.LargestWin {
				r.LargestWin = e.RealizedPL
			}
		} else {
			r.Losses++
			if e.RealizedPL < r.LargestLoss {
				r.LargestLoss = e.RealizedPL
			}
		}
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalTrades) * 100
		r.AvgPL = r.NetPL / float64(r.TotalTrades)
	}
	return r, nil
}

func (r Report) String() string {
	return fmt.Sprintf(
		"trades=%d win_rate=%.1f%% net_pl=%.2f avg_pl=%.2f largest_win=%.2f largest_loss=%.2f",
		r.TotalTrades, r.WinRate, r.NetPL, r.AvgPL, r.LargestWin, r.LargestLoss)
}
