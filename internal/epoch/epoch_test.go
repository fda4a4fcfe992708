package epoch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardDefersReclamation(t *testing.T) {
	m := NewManager()

	g := m.Enter()
	var freed atomic.Bool
	m.Retire(func() { freed.Store(true) })

	for i := 0; i < 4; i++ {
		m.Collect()
	}
	assert.False(t, freed.Load(), "retirement ran while a guard from its epoch was active")

	g.Leave()
	m.Collect()
	assert.True(t, freed.Load(), "retirement did not run after the guard left")
}

func TestRetireWithoutGuards(t *testing.T) {
	m := NewManager()

	var n atomic.Int64
	for i := 0; i < 10; i++ {
		m.Retire(func() { n.Add(1) })
	}
	m.Collect()
	assert.Equal(t, int64(10), n.Load())

	stats := m.Stats()
	assert.Equal(t, uint64(10), stats.Retired)
	assert.Equal(t, uint64(10), stats.Reclaimed)
	assert.Equal(t, uint64(0), stats.Pending)
}

func TestLaterGuardDoesNotBlockOlderRetirement(t *testing.T) {
	m := NewManager()

	old := m.Enter()
	var freed atomic.Bool
	m.Retire(func() { freed.Store(true) })

	// Advance so the next guard pins a newer epoch than the retirement tag.
	m.Collect()
	newer := m.Enter()
	defer newer.Leave()
	require.Greater(t, newer.Epoch(), old.Epoch())

	old.Leave()
	m.Collect()
	assert.True(t, freed.Load(), "a guard from a newer epoch must not pin older garbage")
}

func TestEpochAdvances(t *testing.T) {
	m := NewManager()
	before := m.Stats().Epoch
	for i := 0; i < 3; i++ {
		m.Collect()
	}
	assert.Greater(t, m.Stats().Epoch, before)
}

func TestDrainReleasesEverything(t *testing.T) {
	m := NewManager()

	var n atomic.Int64
	for i := 0; i < 100; i++ {
		m.Retire(func() { n.Add(1) })
	}
	m.Drain()

	assert.Equal(t, int64(100), n.Load())
	assert.Equal(t, uint64(0), m.Stats().Pending)
}

func TestConcurrentGuardsAndRetirements(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	var ran atomic.Int64
	const (
		workers = 8
		rounds  = 2000
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				g := m.Enter()
				if i%7 == 0 {
					m.Retire(func() { ran.Add(1) })
				}
				g.Leave()
			}
		}()
	}
	wg.Wait()
	m.Drain()

	want := int64(workers * ((rounds + 6) / 7))
	require.Equal(t, want, ran.Load())

	stats := m.Stats()
	assert.Equal(t, stats.Retired, stats.Reclaimed)
}

func TestGuardEpoch(t *testing.T) {
	m := NewManager()
	g := m.Enter()
	assert.Equal(t, m.Stats().Epoch, g.Epoch())
	g.Leave()
}
