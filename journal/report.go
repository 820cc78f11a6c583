package journal

import (
	"math"
	"time"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/market"
)

type Performance struct {
	InitialFunds            float64 `json:"Initial Funds"`
	CurrentFunds            float64 `json:"Current Funds"`
	MarginUtilized          float64 `json:"Margin Utilized"`
	ProfitCumulative        float64 `json:"Profit Cumulative"`
	ProfitPercentCumulative float64 `json:"Profit Percent Cumulative"`
}

type PositionInfo struct {
	Direction     broker.Direction `json:"Direction"`
	Quantity      int              `json:"Quantity"`
	EntryPrice    float64          `json:"Entry Price"`
	CurrentPrice  float64          `json:"Current Price"`
	Profit        float64          `json:"Profit"`
	ProfitPercent float64          `json:"Profit Percent"`
}

// Report is the daily order information file.
type Report struct {
	Performance Performance             `json:"Performance Information"`
	Positions   map[string]PositionInfo `json:"Position Information"`
	LastUpdated string                  `json:"Last Updated"`
}

// NewReport values positions at the mid of their tick. Profit per position
// is the price move in the position's favour; cumulative profit is equity
// against initial funds.
func NewReport(positions []broker.Position, ticks map[string]market.Tick, initial float64, m broker.Margin, now time.Time) Report {
	r := Report{
		Positions:   make(map[string]PositionInfo, len(positions)),
		LastUpdated: now.Format(time.ANSIC),
	}
	for _, p := range positions {
		cur := ticks[p.Symbol].Mid()
		profit := round(cur-p.Price, 5) * float64(p.Direction.Sign())
		pct := 0.0
		if p.Price != 0 {
			pct = round(profit*100/p.Price, 2)
		}
		r.Positions[p.Symbol] = PositionInfo{
			Direction:     p.Direction,
			Quantity:      p.Quantity,
			EntryPrice:    p.Price,
			CurrentPrice:  cur,
			Profit:        profit,
			ProfitPercent: pct,
		}
	}

	total := round(m.NetEquity-initial, 2)
	pct := 0.0
	if initial != 0 {
		pct = round(total*100/initial, 2)
	}
	r.Performance = Performance{
		InitialFunds:            initial,
		CurrentFunds:            m.NetEquity,
		MarginUtilized:          m.Margin,
		ProfitCumulative:        total,
		ProfitPercentCumulative: pct,
	}
	return r
}

// Snapshots flattens the report for the SQLite journal.
func (r Report) Snapshots(runID string, at time.Time) (EquitySnapshot, []PositionSnapshot) {
	eq := EquitySnapshot{
		RunID:  runID,
		Time:   at,
		Equity: r.Performance.CurrentFunds,
		Margin: r.Performance.MarginUtilized,
		Profit: r.Performance.ProfitCumulative,
	}
	ps := make([]PositionSnapshot, 0, len(r.Positions))
	for sym, p := range r.Positions {
		ps = append(ps, PositionSnapshot{
			RunID:        runID,
			Time:         at,
			Symbol:       sym,
			Direction:    string(p.Direction),
			Quantity:     p.Quantity,
			EntryPrice:   p.EntryPrice,
			CurrentPrice: p.CurrentPrice,
			Profit:       p.Profit,
		})
	}
	return eq, ps
}

func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
