package journal

import (
	"fmt"
)

// Runs returns the run ids in the order they started.
func (j *SQLite) Runs() ([]string, error) {
	rows, err := j.db.Query(`
		SELECT run_id FROM equity
		GROUP BY run_id
		ORDER BY MIN(time) ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a run's equity snapshots oldest first.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, equity, margin, profit
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Time, &e.Equity, &e.Margin, &e.Profit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPositions returns a run's position snapshots ordered by time, then
// symbol.
func (j *SQLite) ListPositions(runID string) ([]PositionSnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, symbol, direction, quantity, entry_price, current_price, profit
		FROM positions
		WHERE run_id = ?
		ORDER BY time ASC, symbol ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionSnapshot
	for rows.Next() {
		var p PositionSnapshot
		if err := rows.Scan(&p.RunID, &p.Time, &p.Symbol, &p.Direction, &p.Quantity,
			&p.EntryPrice, &p.CurrentPrice, &p.Profit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastEquity returns the newest snapshot of a run.
func (j *SQLite) LastEquity(runID string) (EquitySnapshot, error) {
	var e EquitySnapshot
	err := j.db.QueryRow(`
		SELECT run_id, time, equity, margin, profit
		FROM equity
		WHERE run_id = ?
		ORDER BY time DESC
		LIMIT 1`, runID).Scan(&e.RunID, &e.Time, &e.Equity, &e.Margin, &e.Profit)
	if err != nil {
		return EquitySnapshot{}, fmt.Errorf("run %q: %w", runID, err)
	}
	return e, nil
}
