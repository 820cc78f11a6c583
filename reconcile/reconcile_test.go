package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/risk"
	"github.com/rustyeddy/fxtrader/strategy"
)

func long(sym string, qty int) broker.Position {
	return broker.Position{Symbol: sym, Direction: broker.Buy, Quantity: qty, Price: 1.1}
}

func short(sym string, qty int) broker.Position {
	return broker.Position{Symbol: sym, Direction: broker.Sell, Quantity: qty, Price: 1.1}
}

func intent(sym string, dir broker.Direction, qty, final int) broker.TradeIntent {
	return broker.TradeIntent{Symbol: sym, Direction: dir, Quantity: qty, FinalQuantity: final}
}

func TestDecisionTable(t *testing.T) {
	t.Parallel()

	const sym = "EUR/USD"
	tests := []struct {
		name string
		sig  strategy.Signal
		live *broker.Position
		base int
		want *broker.TradeIntent
	}{
		{"long topped up", strategy.Buy, ptr(long(sym, 1000)), 2000, ptr(intent(sym, broker.Buy, 1000, 2000))},
		{"long at size", strategy.Buy, ptr(long(sym, 2000)), 2000, nil},
		{"long above size", strategy.Buy, ptr(long(sym, 3000)), 2000, nil},
		{"long closed", strategy.Flat, ptr(long(sym, 1000)), 2000, ptr(intent(sym, broker.Sell, 1000, 0))},
		{"long flipped", strategy.Sell, ptr(long(sym, 1000)), 2000, ptr(intent(sym, broker.Sell, 3000, 2000))},
		{"short topped up", strategy.Sell, ptr(short(sym, 500)), 2000, ptr(intent(sym, broker.Sell, 1500, 2000))},
		{"short at size", strategy.Sell, ptr(short(sym, 2000)), 2000, nil},
		{"short closed", strategy.Flat, ptr(short(sym, 1000)), 2000, ptr(intent(sym, broker.Buy, 1000, 0))},
		{"short flipped", strategy.Buy, ptr(short(sym, 1000)), 2000, ptr(intent(sym, broker.Buy, 3000, 2000))},
		{"open long", strategy.Buy, nil, 2000, ptr(intent(sym, broker.Buy, 2000, 2000))},
		{"open short", strategy.Sell, nil, 2000, ptr(intent(sym, broker.Sell, 2000, 2000))},
		{"flat and flat", strategy.Flat, nil, 2000, nil},
		{"zero base opens nothing", strategy.Buy, nil, 0, nil},
		{"zero base still closes", strategy.Flat, ptr(long(sym, 1000)), 0, ptr(intent(sym, broker.Sell, 1000, 0))},
		{"zero base flip only flattens", strategy.Sell, ptr(long(sym, 1000)), 0, ptr(intent(sym, broker.Sell, 1000, 0))},
		{"strong buy opens long", strategy.Signal(2), nil, 2000, ptr(intent(sym, broker.Buy, 2000, 2000))},
		{"strong buy tops up long", strategy.Signal(2), ptr(long(sym, 1000)), 2000, ptr(intent(sym, broker.Buy, 1000, 2000))},
		{"strong buy flips short", strategy.Signal(3), ptr(short(sym, 1000)), 2000, ptr(intent(sym, broker.Buy, 3000, 2000))},
		{"strong sell flips long", strategy.Signal(-2), ptr(long(sym, 1000)), 2000, ptr(intent(sym, broker.Sell, 3000, 2000))},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Decide(sym, tt.sig, tt.live, tt.base)
			if tt.want == nil {
				assert.False(t, ok, "got %s", got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestReconcileNewPosition(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		map[string]strategy.Signal{"EUR/USD": strategy.Buy},
		nil, risk.NewMultipliers([]string{"EUR/USD"}), 2000, false)

	assert.Equal(t, []broker.TradeIntent{intent("EUR/USD", broker.Buy, 2000, 2000)}, got)
}

func TestReconcileCloseOnFlat(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		map[string]strategy.Signal{"EUR/USD": strategy.Flat},
		[]broker.Position{long("EUR/USD", 1000)},
		risk.NewMultipliers(nil), 2000, false)

	assert.Equal(t, []broker.TradeIntent{intent("EUR/USD", broker.Sell, 1000, 0)}, got)
}

func TestReconcileFlip(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		map[string]strategy.Signal{"EUR/USD": strategy.Sell},
		[]broker.Position{long("EUR/USD", 1000)},
		risk.NewMultipliers(nil), 2000, false)

	assert.Equal(t, []broker.TradeIntent{intent("EUR/USD", broker.Sell, 3000, 2000)}, got)
}

func TestReconcileExitOnly(t *testing.T) {
	t.Parallel()

	positions := []broker.Position{long("EUR/USD", 1500), short("USD/JPY", 2000)}
	for _, sig := range []strategy.Signal{strategy.Buy, strategy.Flat, strategy.Sell} {
		got := Reconcile(
			map[string]strategy.Signal{"EUR/USD": sig, "GBP/USD": strategy.Buy},
			positions, risk.NewMultipliers(nil), 2000, true)

		assert.Equal(t, []broker.TradeIntent{
			intent("EUR/USD", broker.Sell, 1500, 0),
			intent("USD/JPY", broker.Buy, 2000, 0),
		}, got, "signal %s", sig)
	}
}

func TestReconcileUsesMultipliers(t *testing.T) {
	t.Parallel()

	m := risk.NewMultipliers([]string{"EUR/USD", "GBP/USD", "USD/JPY"})
	m.Set("EUR/USD", 0.5)
	m.Quarantine("GBP/USD")

	got := Reconcile(map[string]strategy.Signal{
		"EUR/USD": strategy.Buy,
		"GBP/USD": strategy.Buy,
		"USD/JPY": strategy.Sell,
		"AUD/USD": strategy.Sell, // unknown sizes at 1
	}, nil, m, 4000, false)

	assert.Equal(t, []broker.TradeIntent{
		intent("AUD/USD", broker.Sell, 4000, 4000),
		intent("EUR/USD", broker.Buy, 2000, 2000),
		intent("USD/JPY", broker.Sell, 4000, 4000),
	}, got)
}

func TestReconcileIgnoresUnsignalledPositions(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		map[string]strategy.Signal{"EUR/USD": strategy.Buy},
		[]broker.Position{long("EUR/USD", 2000), short("GBP/USD", 1000)},
		risk.NewMultipliers(nil), 2000, false)

	assert.Empty(t, got)
}

func TestReconcileNetsPositions(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		map[string]strategy.Signal{"EUR/USD": strategy.Flat},
		[]broker.Position{long("EUR/USD", 3000), short("EUR/USD", 1000)},
		risk.NewMultipliers(nil), 2000, false)

	assert.Equal(t, []broker.TradeIntent{intent("EUR/USD", broker.Sell, 2000, 0)}, got)
}

func TestReconcileDeterministic(t *testing.T) {
	t.Parallel()

	signals := map[string]strategy.Signal{
		"EUR/USD": strategy.Buy, "GBP/USD": strategy.Sell, "USD/JPY": strategy.Flat,
		"AUD/USD": strategy.Buy, "USD/CAD": strategy.Sell,
	}
	positions := []broker.Position{long("GBP/USD", 1000), short("USD/JPY", 3000), long("USD/CAD", 500)}
	m := risk.NewMultipliers(nil)

	first := Reconcile(signals, positions, m, 2000, false)
	require.Len(t, first, 5)
	for range 50 {
		assert.Equal(t, first, Reconcile(signals, positions, m, 2000, false))
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	got := Flatten([]broker.Position{short("USD/JPY", 2000), long("EUR/USD", 1500)})
	assert.Equal(t, []broker.TradeIntent{
		intent("EUR/USD", broker.Sell, 1500, 0),
		intent("USD/JPY", broker.Buy, 2000, 0),
	}, got)

	assert.Empty(t, Flatten(nil))
}
