package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestPhasesAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	engine, err := newEngine(client, "qrload", false)
	require.NoError(t, err)
	defer engine.Close()

	keys, gen := runGeneratePhase(ctx, engine, 30, 4)
	assert.Len(t, keys, 30)
	assert.Zero(t, gen.failures)

	confirm, outcomes := runConfirmPhase(ctx, engine, keys, 60, 4)
	assert.Zero(t, confirm.failures)
	assert.Equal(t, 60, confirm.ops)

	var total int64
	for _, n := range outcomes {
		total += n
	}
	assert.EqualValues(t, 60, total)

	once, err := newEngine(client, "qrload-once", true)
	require.NoError(t, err)
	defer once.Close()

	winners, err := runRace(ctx, once, 16)
	require.NoError(t, err)
	assert.EqualValues(t, 1, winners)
}
