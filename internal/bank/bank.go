// Package bank implements the per-bank finite state machine described in
// spec.md §3 "BankState" and §4.2's FSM diagram. States are tracked in a
// flat array indexed arithmetically (design note in spec.md §9: deep
// per-bank object graphs collapse into a dense array), mirroring how the
// teacher repository tracks per-tag state in a flat []TagState rather than
// one object per in-flight command.
package bank

import "github.com/rcjacoby/dramsim3go/internal/command"

// State is a bank's position in the FSM of spec.md §4.2.
type State int

const (
	Closed State = iota
	Open
	Refreshing
	SelfRefresh
	PowerDown
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case Refreshing:
		return "REFRESHING"
	case SelfRefresh:
		return "SELF_REFRESH"
	case PowerDown:
		return "POWER_DOWN"
	default:
		return "UNKNOWN"
	}
}

// NoRow is the sentinel open_row value for a CLOSED bank.
const NoRow = -1

// numCmdTypes bounds the cmd_timing array; keep in sync with command.Type's
// constant count.
const numCmdTypes = int(command.SELF_REFRESH_EXIT) + 1

// Bank is one (rank, bankgroup, bank) tuple's state.
type Bank struct {
	State       State
	OpenRow     int
	RowHitCount int
	// CmdTiming[t] is the earliest cycle command type t may legally issue
	// to this bank.
	CmdTiming [numCmdTypes]uint64
}

// New returns a freshly CLOSED bank with every command legal at cycle 0.
func New() Bank {
	return Bank{OpenRow: NoRow}
}

// Activate transitions CLOSED -> OPEN, opening row and resetting the
// row-hit counter (spec.md invariant 4).
func (b *Bank) Activate(row int) {
	b.State = Open
	b.OpenRow = row
	b.RowHitCount = 0
}

// Precharge transitions OPEN -> CLOSED and clears the row-hit counter.
func (b *Bank) Precharge() {
	b.State = Closed
	b.OpenRow = NoRow
	b.RowHitCount = 0
}

// AccessRow records a READ/WRITE hit to the currently open row.
func (b *Bank) AccessRow() {
	b.RowHitCount++
}

// BeginRefresh transitions CLOSED -> REFRESHING.
func (b *Bank) BeginRefresh() {
	b.State = Refreshing
}

// EndRefresh transitions REFRESHING -> CLOSED, once the tRFC window has
// elapsed.
func (b *Bank) EndRefresh() {
	b.State = Closed
	b.OpenRow = NoRow
}

// IsOpenInvariantOK enforces spec.md invariant 2: state == Open iff
// open_row != sentinel.
func (b *Bank) IsOpenInvariantOK() bool {
	return (b.State == Open) == (b.OpenRow != NoRow)
}
