package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSeed_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveSeed(42, 1, 7), DeriveSeed(42, 1, 7))
}

func TestDeriveSeed_Independent(t *testing.T) {
	seen := map[int64]bool{}
	for stream := uint64(0); stream < 4; stream++ {
		for index := uint64(0); index < 256; index++ {
			s := DeriveSeed(42, stream, index)
			assert.NotZero(t, s)
			assert.False(t, seen[s], "duplicate seed for stream %d index %d", stream, index)
			seen[s] = true
		}
	}
	assert.NotEqual(t, DeriveSeed(42, 0, 0), DeriveSeed(43, 0, 0))
}

func TestResolveSeed(t *testing.T) {
	assert.Equal(t, int64(9), ResolveSeed(9))
	assert.NotZero(t, ResolveSeed(0))
}

