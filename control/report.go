package control

import (
	"context"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/journal"
	"github.com/rustyeddy/fxtrader/reconcile"
)

// report values open positions, writes the daily report and journals the
// snapshot. Broker failures are returned; file and database failures are
// only logged.
func (l *Loop) report(ctx context.Context) error {
	const op = "control.report"

	m, err := l.broker.MarginInfo(ctx)
	if err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	positions, err := l.broker.OpenPositions(ctx)
	if err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	positions = broker.Net(positions)

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	ticks, err := l.broker.Prices(ctx, symbols)
	if err != nil && len(symbols) > 0 {
		return fxerr.E(op, fxerr.Broker, err)
	}

	if l.initialFunds == 0 {
		l.initialFunds = m.NetEquity
	}
	now := l.clock.Now()
	r := journal.NewReport(positions, ticks, l.initialFunds, m, now)
	if err := l.store.WriteReport(r); err != nil {
		l.log.Error("report not written", zap.Error(err))
	}

	eq, ps := r.Snapshots(l.runID, now)
	if err := l.journal.RecordEquity(eq); err != nil {
		l.log.Error("equity not journaled", zap.Error(err))
	}
	if err := l.journal.RecordPositions(ps); err != nil {
		l.log.Error("positions not journaled", zap.Error(err))
	}

	l.log.Info("account",
		zap.Float64("equity", m.NetEquity),
		zap.Float64("margin", m.Margin),
		zap.Float64("profit", r.Performance.ProfitCumulative),
		zap.Int("positions", len(positions)))
	return nil
}

// EmergencyClose logs in, closes every open position whether or not
// trading is switched on, and writes the report.
func (l *Loop) EmergencyClose(ctx context.Context) error {
	const op = "control.EmergencyClose"

	if err := l.broker.Authenticate(ctx); err != nil {
		return err
	}
	positions, err := l.broker.OpenPositions(ctx)
	if err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	intents := reconcile.Flatten(positions)
	for _, ti := range intents {
		l.log.Warn("emergency close", zap.Stringer("intent", ti))
	}
	if len(intents) > 0 {
		if _, err := l.exec.Force(ctx, intents); err != nil {
			return err
		}
	}
	return l.report(ctx)
}
