package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/fxtrader/fxerr"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	const op = "journal.NewSQLite"

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fxerr.E(op, fxerr.Persistence, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fxerr.E(op, fxerr.Persistence, err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, equity, margin, profit)
		VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Equity, e.Margin, e.Profit,
	)
	return fxerr.E("journal.RecordEquity", fxerr.Persistence, err)
}

// RecordPositions writes all snapshots in one transaction.
func (j *SQLite) RecordPositions(ps []PositionSnapshot) error {
	const op = "journal.RecordPositions"

	if len(ps) == 0 {
		return nil
	}
	tx, err := j.db.Begin()
	if err != nil {
		return fxerr.E(op, fxerr.Persistence, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO positions
		(run_id, time, symbol, direction, quantity, entry_price, current_price, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fxerr.E(op, fxerr.Persistence, err)
	}
	defer stmt.Close()

	for _, p := range ps {
		if _, err := stmt.Exec(p.RunID, p.Time, p.Symbol, p.Direction, p.Quantity,
			p.EntryPrice, p.CurrentPrice, p.Profit); err != nil {
			_ = tx.Rollback()
			return fxerr.E(op, fxerr.Persistence, err)
		}
	}
	return fxerr.E(op, fxerr.Persistence, tx.Commit())
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
