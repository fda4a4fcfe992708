package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerImposesNoLimits(t *testing.T) {
	var c *Controller

	assert.True(t, c.TryAcquireMemory(1<<40))
	assert.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.True(t, c.AllowConsolidation(1<<30))
}

func TestZeroConfigTracksOnly(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(500))
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.True(t, c.AllowConsolidation(1<<20))

	c.ReleaseMemory(500)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestMemoryLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireMemory(60))
	assert.False(t, c.TryAcquireMemory(60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(60)
	assert.True(t, c.TryAcquireMemory(100))
	c.ReleaseMemory(100)
}

func TestAcquireMemoryRespectsContext(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 10})
	require.NoError(t, c.AcquireMemory(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.AcquireMemory(ctx, 5)
	require.Error(t, err)
	assert.Equal(t, int64(10), c.MemoryUsage())

	c.ReleaseMemory(10)
}

func TestZeroOrNegativeBytesAreFree(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 1})

	assert.True(t, c.TryAcquireMemory(0))
	assert.True(t, c.TryAcquireMemory(-5))
	c.ReleaseMemory(0)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestConsolidationRate(t *testing.T) {
	c := NewController(Config{ConsolidationBytesPerSec: 1000})

	// The bucket starts full at one second of budget.
	assert.True(t, c.AllowConsolidation(600))
	assert.False(t, c.AllowConsolidation(600))
}

func TestConsolidationClampsToBurst(t *testing.T) {
	c := NewController(Config{ConsolidationBytesPerSec: 100})

	// A request larger than the burst is clamped rather than being
	// unsatisfiable forever.
	assert.True(t, c.AllowConsolidation(1<<20))
	assert.False(t, c.AllowConsolidation(1))
}
