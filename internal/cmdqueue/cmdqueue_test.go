package cmdqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcjacoby/dramsim3go/internal/channel"
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/timing"
)

type fakeStats struct{ onDemand int }

func (f *fakeStats) RecordOnDemandPrecharge() { f.onDemand++ }

func newTestQueue(t *testing.T, cfg *config.Config) (*Queue, *channel.State, *fakeStats) {
	t.Helper()
	tbl := timing.Build(cfg)
	ch := channel.New(cfg.Topology, tbl)
	fs := &fakeStats{}
	q, err := New(cfg, ch, fs)
	require.NoError(t, err)
	return q, ch, fs
}

func TestQueueFullRejectsNinthCommand(t *testing.T) {
	cfg := config.Default()
	cfg.CmdQueueSize = 8
	q, _, _ := newTestQueue(t, cfg)

	for i := 0; i < 8; i++ {
		require.True(t, q.WillAccept(0, 0, 0))
		require.True(t, q.AddCommand(command.Command{Type: command.READ, Bank: 0, ID: uint64(i)}))
	}
	assert.False(t, q.WillAccept(0, 0, 0))
	assert.False(t, q.AddCommand(command.Command{Type: command.READ, Bank: 0, ID: 8}))
}

// TestRowHitCapLetsPrechargeWinAtCap exercises S4: after RowHitCap
// consecutive same-row reads, a queued different-row read's PRECHARGE must
// win arbitration even though a same-row request is still pending.
func TestRowHitCapLetsPrechargeWinAtCap(t *testing.T) {
	cfg := config.Default()
	cfg.RowHitCap = 4
	q, ch, fs := newTestQueue(t, cfg)

	ch.UpdateState(command.Command{Type: command.ACTIVATE, Row: 0})
	for i := 0; i < cfg.RowHitCap; i++ {
		ch.UpdateState(command.Command{Type: command.READ, Row: 0})
	}
	require.Equal(t, cfg.RowHitCap, ch.RowHitCount(0, 0, 0))

	// One more same-row request still pending, queued ahead of a different-row one.
	require.True(t, q.AddCommand(command.Command{Type: command.READ, Row: 0, ID: 1}))
	require.True(t, q.AddCommand(command.Command{Type: command.READ, Row: 1, ID: 2}))

	precharge := command.Command{Type: command.PRECHARGE, Bank: 0}
	won := q.arbitratePrecharge(q.queueIndex(0, 0, 0), precharge)
	assert.True(t, won, "precharge should win once the row-hit cap is reached")
	assert.Equal(t, 1, fs.onDemand)
}

func TestRowHitCapBlocksPrechargeBelowCap(t *testing.T) {
	cfg := config.Default()
	cfg.RowHitCap = 4
	q, ch, fs := newTestQueue(t, cfg)

	ch.UpdateState(command.Command{Type: command.ACTIVATE, Row: 0})
	ch.UpdateState(command.Command{Type: command.READ, Row: 0}) // only 1 hit so far

	require.True(t, q.AddCommand(command.Command{Type: command.READ, Row: 0, ID: 1}))
	require.True(t, q.AddCommand(command.Command{Type: command.READ, Row: 1, ID: 2}))

	precharge := command.Command{Type: command.PRECHARGE, Bank: 0}
	won := q.arbitratePrecharge(q.queueIndex(0, 0, 0), precharge)
	assert.False(t, won, "precharge should yield to a pending same-row request below the cap")
	assert.Equal(t, 0, fs.onDemand)
}

func TestGetCommandToIssueReturnsActivateForColdBank(t *testing.T) {
	cfg := config.Default()
	q, _, _ := newTestQueue(t, cfg)

	q.AddCommand(command.Command{Type: command.READ, Bank: 0, Row: 3, ID: 1})
	cmd := q.GetCommandToIssue(0, func(int, int, int) bool { return false })
	require.True(t, cmd.Ok)
	assert.Equal(t, command.ACTIVATE, cmd.Command.Type)
}

func TestIssueRWCommandRemovesByID(t *testing.T) {
	cfg := config.Default()
	q, _, _ := newTestQueue(t, cfg)

	c1 := command.Command{Type: command.READ, Bank: 0, ID: 1}
	c2 := command.Command{Type: command.READ, Bank: 0, ID: 2}
	q.AddCommand(c1)
	q.AddCommand(c2)

	q.IssueRWCommand(c1)
	assert.Equal(t, 1, q.QueueUsage())
}
