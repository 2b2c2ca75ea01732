// Package testenv provides general test utilities.
package testenv

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MakeAR creates testify assert and require objects.
func MakeAR(t require.TestingT) (*assert.Assertions, *require.Assertions) {
	return assert.New(t), require.New(t)
}

// Rand creates a random source for randomized tests.
// The seed is taken from TMDRV_TEST_SEED if set, otherwise from the clock, and is logged so that a failure can be replayed.
func Rand(t testing.TB) *rand.Rand {
	seed, e := strconv.ParseInt(os.Getenv("TMDRV_TEST_SEED"), 10, 64)
	if e != nil {
		seed = time.Now().UnixNano()
	}
	t.Logf("TMDRV_TEST_SEED=%d", seed)
	return rand.New(rand.NewSource(seed))
}
