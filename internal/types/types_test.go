package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailableRejectsOutOfRange(t *testing.T) {
	assert := assert.New(t)

	assert.True(Available(0).Valid)
	assert.True(Available(100).Valid)
	assert.False(Available(-1).Valid)
	assert.False(Available(100.5).Valid)
	assert.False(Available(math.NaN()).Valid)
	assert.Equal(Unavailable(), Available(101))
}

func TestSeverityIsMonotonic(t *testing.T) {
	thresholds := []float64{76, 50, 20}

	prev := SeverityNormal
	for soc := 100.0; soc >= 0; soc -= 0.5 {
		s := SeverityFor(soc, thresholds)
		assert.GreaterOrEqual(t, int(s), int(prev), "soc %.1f", soc)
		prev = s
	}
}

func TestSeverityBuckets(t *testing.T) {
	assert := assert.New(t)
	thresholds := []float64{50, 20}

	assert.Equal(SeverityNormal, SeverityFor(70, thresholds))
	assert.Equal(SeverityWarning, SeverityFor(50, thresholds))
	assert.Equal(SeverityWarning, SeverityFor(45, thresholds))
	assert.Equal(SeverityCritical, SeverityFor(20, thresholds))
	assert.Equal(SeverityCritical, SeverityFor(3, []float64{80, 60, 40, 20}))
	assert.Equal("critical", SeverityCritical.String())
}

func TestDisplayNameFallsBackToRef(t *testing.T) {
	assert.Equal(t, "123", MonitoredDevice{Ref: "123"}.DisplayName())
	assert.Equal(t, "Home", MonitoredDevice{Ref: "123", Name: "Home"}.DisplayName())
}
