package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMIST(t *testing.T) {
	assert.Equal(t, uint64(1_000_000_000), ToMIST(1))
	assert.Equal(t, uint64(1_500_000_000), ToMIST(1.5))
	assert.Equal(t, uint64(1_000_000), ToMIST(0.001))
	assert.Equal(t, uint64(0), ToMIST(0))
	assert.Equal(t, uint64(0), ToMIST(-3))
}

func TestToMIST_TruncatesSubMIST(t *testing.T) {
	// 0.1 is not exactly representable in binary; decimal conversion must
	// still land on the exact base-unit value.
	assert.Equal(t, uint64(100_000_000), ToMIST(0.1))
	assert.Equal(t, uint64(1), ToMIST(0.0000000019))
}

func TestFromMIST(t *testing.T) {
	assert.InDelta(t, 1.5, FromMIST(1_500_000_000), 1e-12)
	assert.InDelta(t, 0.000000001, FromMIST(1), 1e-15)
	assert.Zero(t, FromMIST(0))
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []float64{0.001, 1, 42.42, 99.999999999} {
		assert.InDelta(t, amount, FromMIST(ToMIST(amount)), 1e-9)
	}
}
