package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMismatchedAddressMapping(t *testing.T) {
	cfg := Default()
	cfg.AddressMapping = "rrrr" // far too few bits for the default topology
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownQueueStructure(t *testing.T) {
	cfg := Default()
	cfg.QueueStructure = "NOT_A_STRUCTURE"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroRowHitCap(t *testing.T) {
	cfg := Default()
	cfg.RowHitCap = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMultiChannelMappingWithNoChannelBits(t *testing.T) {
	cfg := Default()
	cfg.Topology.Channels = 2
	// Unchanged from the single-channel default: no 'h' tag anywhere, so
	// every address would decode to channel 0 regardless of Channels.
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsMultiChannelMappingWithChannelBit(t *testing.T) {
	cfg := Default()
	cfg.Topology.Channels = 2
	cfg.AddressMapping = "h" + cfg.AddressMapping
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFileSeedsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Topology, cfg.Topology)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dramsim.yaml")
	contents := "row_hit_cap: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.RowHitCap)
	assert.Equal(t, Default().Topology.Rows, cfg.Topology.Rows)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DRAMSIM_ROW_HIT_CAP", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RowHitCap)
}

func TestBitsFor(t *testing.T) {
	assert.Equal(t, 0, bitsFor(1))
	assert.Equal(t, 1, bitsFor(2))
	assert.Equal(t, 2, bitsFor(4))
	assert.Equal(t, 16, bitsFor(1<<16))
}
