package snowflake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeRejectsMachineIDOutOfRange(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)

	_, err = NewSnowflake(maxMachineID + 1)
	assert.Error(t, err)
}

func TestGenerateIsUniqueAndIncreasing(t *testing.T) {
	sf, err := NewSnowflake(3)
	require.NoError(t, err)

	prev := sf.Generate()
	for i := 0; i < 10000; i++ {
		id := sf.Generate()
		require.Greater(t, id, prev)
		prev = id
	}

	_, machineID, _ := sf.ParseID(prev)
	assert.Equal(t, int64(3), machineID)
}

func TestGenerateConcurrent(t *testing.T) {
	sf, err := NewSnowflake(1)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- sf.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestGenerateWaitsOutClockRollback(t *testing.T) {
	sf, err := NewSnowflake(1)
	require.NoError(t, err)

	ticks := []int64{defaultEpoch + 100, defaultEpoch + 90, defaultEpoch + 101}
	sf.now = func() int64 {
		v := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return v
	}

	first := sf.Generate()
	second := sf.Generate()
	assert.Greater(t, second, first)
}
