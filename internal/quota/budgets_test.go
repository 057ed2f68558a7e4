package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndConsumeWithinLimits(t *testing.T) {
	g := NewGuard()
	g.InitializeVenue("binance", 100, 10, 5)

	require.NoError(t, g.CheckAndConsume("binance", 3))
	status := g.Status("binance")
	require.NotNil(t, status)
	assert.Equal(t, "active", status.Status)
	assert.EqualValues(t, 2, status.RemainingCalls)
}

func TestCheckAndConsumeRejectsOverHourlyLimit(t *testing.T) {
	g := NewGuard()
	g.InitializeVenue("binance", 100, 10, 5)

	require.NoError(t, g.CheckAndConsume("binance", 5))
	err := g.CheckAndConsume("binance", 1)
	assert.Error(t, err)
}

func TestCheckAndConsumeUnconfiguredVenueIsUnmetered(t *testing.T) {
	g := NewGuard()
	assert.NoError(t, g.CheckAndConsume("unknown-venue", 1000))
}

func TestStatusReportsWarningNearLimit(t *testing.T) {
	g := NewGuard()
	g.InitializeVenue("okx", 100, 100, 10)

	require.NoError(t, g.CheckAndConsume("okx", 9))
	status := g.Status("okx")
	require.NotNil(t, status)
	assert.Equal(t, "warning", status.Status)
}

func TestDefaultGuardConfiguresBinanceAndOKX(t *testing.T) {
	g := DefaultGuard()
	assert.NotNil(t, g.Status("binance"))
	assert.NotNil(t, g.Status("okx"))
	assert.Nil(t, g.Status("kraken"))
}
