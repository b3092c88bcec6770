package addrmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcjacoby/dramsim3go/internal/config"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cfg := config.Default()
	m, err := New(cfg.Topology, cfg.AddressMapping)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	bits := uint(len(cfg.AddressMapping))
	mask := (uint64(1) << bits) - 1

	for i := 0; i < 2000; i++ {
		addr := rng.Uint64() & mask
		d := m.Decode(addr)
		got := m.Encode(d)
		require.Equalf(t, addr, got, "round trip mismatch for addr=0x%x decoded=%+v", addr, d)
	}
}

func TestDecodeSplitsColumnIntoHighAndLow(t *testing.T) {
	cfg := config.Default()
	m, err := New(cfg.Topology, cfg.AddressMapping)
	require.NoError(t, err)

	// Flipping only the lowest address bits should only move Column, never
	// Row/Bank/Bankgroup.
	base := m.Decode(0)
	withLowBits := m.Decode(0b111)
	require.Equal(t, base.Row, withLowBits.Row)
	require.Equal(t, base.Bank, withLowBits.Bank)
	require.NotEqual(t, base.Column, withLowBits.Column)
}

func TestNewRejectsUnknownTag(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg.Topology, "rrrrZ")
	require.Error(t, err)
}
