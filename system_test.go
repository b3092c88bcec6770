package dramsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcjacoby/dramsim3go/internal/config"
)

func TestNewSystemRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RowHitCap = 0
	_, err := NewSystem(cfg)
	require.Error(t, err)

	var dErr *Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, ErrCodeConfigInvalid, dErr.Code)
}

func TestSystemAssignsDistinctIDs(t *testing.T) {
	cfg := config.Default()
	s1, err := NewSystem(cfg)
	require.NoError(t, err)
	s2, err := NewSystem(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestInsertReqAndClockTickDeliverCallback(t *testing.T) {
	cfg := config.Default()
	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	defer sys.Close()

	rec := NewCallbackRecorder()
	sys.RegisterCallbacks(rec.OnRead, rec.OnWrite)

	require.True(t, sys.InsertReq(0, false))

	budget := cfg.Timing.TRCD + cfg.Timing.TCL + cfg.Topology.BurstLength/2 + 5
	for i := 0; i < budget; i++ {
		sys.ClockTick()
	}

	assert.Equal(t, 1, rec.Total())
	assert.Equal(t, []uint64{0}, rec.Reads())
}

func TestQueueFullReturnsFalseWithoutNoBackpressure(t *testing.T) {
	cfg := config.Default()
	cfg.CmdQueueSize = 1
	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	defer sys.Close()

	require.True(t, sys.InsertReq(0, false))
	assert.False(t, sys.InsertReq(0x40, false)) // same bank, FIFO already full
}
