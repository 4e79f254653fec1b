package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trade_events (
	event_id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	time DATETIME NOT NULL,
	direction TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	stop REAL NOT NULL,
	target REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_position ON trade_events(position_id);
CREATE INDEX IF NOT EXISTS idx_events_time ON trade_events(time);
`
