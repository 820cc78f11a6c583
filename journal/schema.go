package journal

const Schema = `
CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	margin REAL NOT NULL,
	profit REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	current_price REAL NOT NULL,
	profit REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_positions_run ON positions(run_id, time);
`
