package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
)

func findEntry(entries []Entry, affected command.Type) (Entry, bool) {
	for _, e := range entries {
		if e.Affected == affected && e.Scope == SameBank {
			return e, true
		}
	}
	return Entry{}, false
}

func findEntryAnyScope(entries []Entry, affected command.Type) (Entry, bool) {
	for _, e := range entries {
		if e.Affected == affected {
			return e, true
		}
	}
	return Entry{}, false
}

func TestActivatePropagatesTRCDToReadAndWrite(t *testing.T) {
	cfg := config.Default()
	tbl := Build(cfg)

	readEntry, ok := findEntry(tbl[command.ACTIVATE], command.READ)
	require.True(t, ok)
	assert.Equal(t, cfg.Timing.TRCD, readEntry.Delta)

	writeEntry, ok := findEntry(tbl[command.ACTIVATE], command.WRITE)
	require.True(t, ok)
	assert.Equal(t, cfg.Timing.TRCD, writeEntry.Delta)
}

func TestPrechargePropagatesTRPToActivate(t *testing.T) {
	cfg := config.Default()
	tbl := Build(cfg)

	entry, ok := findEntry(tbl[command.PRECHARGE], command.ACTIVATE)
	require.True(t, ok)
	assert.Equal(t, cfg.Timing.TRP, entry.Delta)
}

func TestRefreshBlocksActivateForTRFC(t *testing.T) {
	cfg := config.Default()
	tbl := Build(cfg)

	entry, ok := findEntryAnyScope(tbl[command.REFRESH], command.ACTIVATE)
	require.True(t, ok)
	assert.Equal(t, cfg.Timing.TRFC, entry.Delta)
}
