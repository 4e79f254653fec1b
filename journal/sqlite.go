package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordEvent(e TradeEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO trade_events
		(event_id, position_id, symbol, kind, time, direction, quantity, price, stop, target, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.PositionID, e.Symbol, string(e.Kind), e.Time,
		e.Direction, e.Quantity, e.Price, e.Stop, e.Target, e.RealizedPL, e.Reason,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
