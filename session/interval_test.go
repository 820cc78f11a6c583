package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxtrader/fxerr"
)

func TestValidateInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		interval string
		span     int
		want     int
		ok       bool
	}{
		{"MINUTE", 1, 60, true},
		{"MINUTE", 5, 300, true},
		{"minute", 30, 1800, true},
		{"HOUR", 1, 3600, true},
		{"HOUR", 8, 28800, true},
		{"MINUTE", 4, 0, false},
		{"MINUTE", 60, 0, false},
		{"HOUR", 3, 0, false},
		{"DAY", 1, 0, false},
		{"", 1, 0, false},
	}
	for _, tt := range tests {
		got, err := ValidateInterval(tt.interval, tt.span)
		if !tt.ok {
			require.Error(t, err, "%s/%d", tt.interval, tt.span)
			assert.True(t, fxerr.Is(err, fxerr.Config))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
