package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickLogsOncePerInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(zap.NewNop()) })

	start := time.Unix(1000, 0)
	clock := start
	p := NewProfiler(time.Second)
	p.lastTime = start
	p.now = func() time.Time { return clock }

	clock = start.Add(300 * time.Millisecond)
	assert.False(t, p.Tick())
	p.Skip()
	clock = start.Add(600 * time.Millisecond)
	assert.False(t, p.Tick())
	clock = start.Add(time.Second)
	assert.True(t, p.Tick())

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.InDelta(t, 3.0, fields["fps"], 1e-9)
	assert.EqualValues(t, 1, fields["skipped"])

	clock = start.Add(1500 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestNewProfilerDefaultInterval(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).updateInterval)
	assert.Equal(t, 250*time.Millisecond, NewProfiler(250*time.Millisecond).updateInterval)
}
