package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('equity','positions')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["equity"])
	assert.True(t, found["positions"])
}

func TestSQLiteEquityByRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	t0 := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	for i, run := range []string{"RUN-A", "RUN-B", "RUN-A"} {
		require.NoError(t, j.RecordEquity(EquitySnapshot{
			RunID:  run,
			Time:   t0.Add(time.Duration(i) * 5 * time.Minute),
			Equity: 10_000 + float64(i),
			Margin: 50.5,
			Profit: float64(i),
		}))
	}

	runs, err := j.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"RUN-A", "RUN-B"}, runs)

	eq, err := j.ListEquity("RUN-A")
	require.NoError(t, err)
	require.Len(t, eq, 2)
	assert.True(t, eq[0].Time.Equal(t0))
	assert.InDelta(t, 10_002, eq[1].Equity, 1e-9)
	assert.InDelta(t, 50.5, eq[1].Margin, 1e-9)

	last, err := j.LastEquity("RUN-A")
	require.NoError(t, err)
	assert.True(t, last.Time.Equal(t0.Add(10*time.Minute)))

	_, err = j.LastEquity("RUN-Z")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSQLitePositions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	at := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordPositions(nil))
	require.NoError(t, j.RecordPositions([]PositionSnapshot{
		{RunID: "R", Time: at, Symbol: "USD/JPY", Direction: "sell", Quantity: 2000, EntryPrice: 150.1, CurrentPrice: 150.0, Profit: 0.1},
		{RunID: "R", Time: at, Symbol: "EUR/USD", Direction: "buy", Quantity: 1000, EntryPrice: 1.1, CurrentPrice: 1.1002, Profit: 0.0002},
	}))

	ps, err := j.ListPositions("R")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "EUR/USD", ps[0].Symbol)
	assert.Equal(t, "buy", ps[0].Direction)
	assert.Equal(t, 1000, ps[0].Quantity)
	assert.InDelta(t, 1.1002, ps[0].CurrentPrice, 1e-9)
	assert.Equal(t, "USD/JPY", ps[1].Symbol)
	assert.True(t, ps[1].Time.Equal(at))
}

func TestNop(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.RecordEquity(EquitySnapshot{}))
	assert.NoError(t, j.RecordPositions([]PositionSnapshot{{}}))
	assert.NoError(t, j.Close())
}
