package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseQuantity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		multiplier float64
		orderSize  int
		want       int
	}{
		{"unit", 1, 2000, 2000},
		{"half", 0.5, 2000, 1000},
		{"rounds up", 1, 1500, 2000},
		{"rounds down", 1, 1499, 1000},
		{"below a lot", 0.2, 2000, 0},
		{"quarantined", 0, 10000, 0},
		{"scaled up", 2.5, 3000, 8000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BaseQuantity(tt.multiplier, tt.orderSize))
		})
	}
}

func TestMultipliers(t *testing.T) {
	t.Parallel()

	m := NewMultipliers([]string{"EUR/USD", "GBP/USD"})
	assert.Equal(t, 1.0, m.Get("EUR/USD"))
	assert.Equal(t, 1.0, m.Get("USD/JPY"), "unknown symbols size at 1")

	m.Set("EUR/USD", 0.5)
	assert.Equal(t, 0.5, m.Get("EUR/USD"))

	m.Quarantine("GBP/USD")
	assert.True(t, m.Quarantined("GBP/USD"))
	m.Set("GBP/USD", 1)
	assert.Equal(t, 0.0, m.Get("GBP/USD"), "quarantine is permanent")

	assert.False(t, m.Quarantined("USD/JPY"))
	assert.Equal(t, []string{"EUR/USD", "GBP/USD"}, m.Symbols())

	snap := m.Snapshot()
	snap["EUR/USD"] = 9
	assert.Equal(t, 0.5, m.Get("EUR/USD"))
}
