package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV appends trade events to a single flat file. Every record is flushed
// immediately so a crash loses at most the in-flight event.
type CSV struct {
	w *csv.Writer
	f *os.File
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	header := []string{
		"event_id", "position_id", "symbol", "kind", "time",
		"direction", "quantity", "price", "stop", "target", "realized_pl", "reason",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return &CSV{w: w, f: f}, nil
}

func (j *CSV) RecordEvent(e TradeEvent) error {
	err := j.w.Write([]string{
		e.EventID,
		e.PositionID,
		e.Symbol,
		string(e.Kind),
		e.Time.Format(time.RFC3339),
		e.Direction,
		strconv.Itoa(e.Quantity),
		f(e.Price),
		f(e.Stop),
		f(e.Target),
		f(e.RealizedPL),
		e.Reason,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
