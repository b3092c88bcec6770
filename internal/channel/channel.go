// Package channel implements ChannelState (spec.md §3/§4.2): the
// authoritative aggregate of every bank's FSM and the read-only query
// surface the scheduler uses to decide what is legal right now.
//
// Sub-objects never call back into the Controller (design note in
// spec.md §9): ChannelState exposes queries (OpenRow, RowHitCount,
// GetRequiredCommand, IsReady) and three mutators (UpdateState,
// UpdateTiming, EndRefresh) that the Controller alone invokes.
package channel

import (
	"github.com/rcjacoby/dramsim3go/internal/bank"
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/timing"
)

// State is the flat bank array plus the static timing table for one
// channel.
type State struct {
	ranks, bankgroups, banksPerGroup int
	banks                            []bank.Bank
	table                            timing.Table
}

// New builds a ChannelState with every bank CLOSED.
func New(topo config.Topology, table timing.Table) *State {
	n := topo.Ranks * topo.BankGroups * topo.BanksPerGroup
	s := &State{
		ranks:         topo.Ranks,
		bankgroups:    topo.BankGroups,
		banksPerGroup: topo.BanksPerGroup,
		banks:         make([]bank.Bank, n),
		table:         table,
	}
	for i := range s.banks {
		s.banks[i] = bank.New()
	}
	return s
}

func (s *State) index(rank, bankgroup, bnk int) int {
	return (rank*s.bankgroups+bankgroup)*s.banksPerGroup + bnk
}

func (s *State) bankAt(rank, bankgroup, bnk int) *bank.Bank {
	return &s.banks[s.index(rank, bankgroup, bnk)]
}

// OpenRow returns the currently open row of (rank, bankgroup, bank), or
// bank.NoRow if it is not OPEN.
func (s *State) OpenRow(rank, bankgroup, bnk int) int {
	return s.bankAt(rank, bankgroup, bnk).OpenRow
}

// RowHitCount returns the number of consecutive same-row accesses since
// the last ACTIVATE on that bank.
func (s *State) RowHitCount(rank, bankgroup, bnk int) int {
	return s.bankAt(rank, bankgroup, bnk).RowHitCount
}

// BankState exposes the raw FSM state, used by statistics and tests.
func (s *State) BankState(rank, bankgroup, bnk int) bank.State {
	return s.bankAt(rank, bankgroup, bnk).State
}

// GetRequiredCommand implements spec.md §4.2: given a logical command
// (a queued RW command, or a REFRESH marker from the refresh engine),
// return the actual command that must be issued next to make progress.
func (s *State) GetRequiredCommand(cmd command.Command) command.Maybe {
	switch cmd.Type {
	case command.REFRESH:
		for bg := 0; bg < s.bankgroups; bg++ {
			for bnk := 0; bnk < s.banksPerGroup; bnk++ {
				if s.bankAt(cmd.Rank, bg, bnk).State == bank.Open {
					return command.Some(command.Command{
						Type: command.PRECHARGE, Rank: cmd.Rank,
						Bankgroup: bg, Bank: bnk,
					})
				}
			}
		}
		return command.Some(cmd)

	case command.REFRESH_BANK:
		b := s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank)
		if b.State == bank.Open {
			return command.Some(command.Command{
				Type: command.PRECHARGE, Rank: cmd.Rank,
				Bankgroup: cmd.Bankgroup, Bank: cmd.Bank,
			})
		}
		return command.Some(cmd)

	case command.READ, command.WRITE, command.READ_PRECHARGE, command.WRITE_PRECHARGE:
		b := s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank)
		switch b.State {
		case bank.Closed:
			return command.Some(command.Command{
				Type: command.ACTIVATE, Rank: cmd.Rank, Bankgroup: cmd.Bankgroup,
				Bank: cmd.Bank, Row: cmd.Row, ID: cmd.ID,
			})
		case bank.Open:
			if b.OpenRow == cmd.Row {
				return command.Some(cmd)
			}
			return command.Some(command.Command{
				Type: command.PRECHARGE, Rank: cmd.Rank,
				Bankgroup: cmd.Bankgroup, Bank: cmd.Bank,
			})
		case bank.Refreshing:
			// Nothing can be issued until the refresh window elapses;
			// the controller's scheduled EndRefresh callback will close
			// the bank and a later poll will see Closed -> ACTIVATE.
			return command.None
		case bank.SelfRefresh, bank.PowerDown:
			return command.Some(command.Command{
				Type: command.SELF_REFRESH_EXIT, Rank: cmd.Rank,
				Bankgroup: cmd.Bankgroup, Bank: cmd.Bank,
			})
		}
		return command.None

	default:
		return command.Some(cmd)
	}
}

// IsReady reports whether cmd is legal to issue at clk: the bank's
// earliest-legal cycle for this command type has passed, and the bank's
// current FSM state admits this command type.
func (s *State) IsReady(cmd command.Command, clk uint64) bool {
	switch cmd.Type {
	case command.REFRESH:
		if !s.allClosedInRank(cmd.Rank) {
			return false
		}
		return clk >= s.bankAt(cmd.Rank, 0, 0).CmdTiming[command.REFRESH]

	case command.REFRESH_BANK:
		b := s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank)
		return b.State == bank.Closed && clk >= b.CmdTiming[command.REFRESH_BANK]
	}

	b := s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank)
	if clk < b.CmdTiming[cmd.Type] {
		return false
	}
	switch cmd.Type {
	case command.ACTIVATE:
		return b.State == bank.Closed
	case command.READ, command.WRITE, command.READ_PRECHARGE, command.WRITE_PRECHARGE:
		return b.State == bank.Open && b.OpenRow == cmd.Row
	case command.PRECHARGE:
		return b.State == bank.Open
	case command.SELF_REFRESH_ENTER:
		return b.State == bank.Closed
	case command.SELF_REFRESH_EXIT:
		return b.State == bank.SelfRefresh || b.State == bank.PowerDown
	default:
		return true
	}
}

// UpdateState advances the bank FSM for an issued command (spec.md §4.2's
// FSM diagram).
func (s *State) UpdateState(cmd command.Command) {
	switch cmd.Type {
	case command.ACTIVATE:
		s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank).Activate(cmd.Row)

	case command.PRECHARGE:
		s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank).Precharge()

	case command.READ, command.WRITE:
		s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank).AccessRow()

	case command.READ_PRECHARGE, command.WRITE_PRECHARGE:
		b := s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank)
		b.AccessRow()
		b.Precharge()

	case command.REFRESH:
		for bg := 0; bg < s.bankgroups; bg++ {
			for bnk := 0; bnk < s.banksPerGroup; bnk++ {
				s.bankAt(cmd.Rank, bg, bnk).BeginRefresh()
			}
		}

	case command.REFRESH_BANK:
		s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank).BeginRefresh()

	case command.SELF_REFRESH_ENTER:
		for bg := 0; bg < s.bankgroups; bg++ {
			for bnk := 0; bnk < s.banksPerGroup; bnk++ {
				s.bankAt(cmd.Rank, bg, bnk).State = bank.SelfRefresh
			}
		}

	case command.SELF_REFRESH_EXIT:
		for bg := 0; bg < s.bankgroups; bg++ {
			for bnk := 0; bnk < s.banksPerGroup; bnk++ {
				b := s.bankAt(cmd.Rank, bg, bnk)
				b.State = bank.Closed
				b.OpenRow = bank.NoRow
			}
		}
	}
}

// EndRefresh closes a bank (or, for rank-level refresh, every bank in the
// rank) once its tRFC window has elapsed. Called by the controller from a
// scheduled completion, not inline with UpdateState, so the REFRESHING
// state is actually observable between issue and completion.
func (s *State) EndRefresh(rank int, rankLevel bool, bankgroup, bnk int) {
	if rankLevel {
		for bg := 0; bg < s.bankgroups; bg++ {
			for b := 0; b < s.banksPerGroup; b++ {
				s.bankAt(rank, bg, b).EndRefresh()
			}
		}
		return
	}
	s.bankAt(rank, bankgroup, bnk).EndRefresh()
}

// UpdateTiming applies the Timing Table entries for an issued command,
// advancing the affected banks' earliest-legal cycle (spec.md §4.1). This
// is the only mechanism timing constraints propagate through.
func (s *State) UpdateTiming(cmd command.Command, clk uint64) {
	for _, e := range s.table[cmd.Type] {
		target := clk + uint64(e.Delta)
		s.forEachInScope(cmd, e.Scope, func(b *bank.Bank) {
			if target > b.CmdTiming[e.Affected] {
				b.CmdTiming[e.Affected] = target
			}
		})
	}
}

func (s *State) forEachInScope(cmd command.Command, scope timing.Scope, fn func(*bank.Bank)) {
	switch scope {
	case timing.SameBank:
		fn(s.bankAt(cmd.Rank, cmd.Bankgroup, cmd.Bank))

	case timing.SameBankgroupOtherBank:
		for b := 0; b < s.banksPerGroup; b++ {
			if b == cmd.Bank {
				continue
			}
			fn(s.bankAt(cmd.Rank, cmd.Bankgroup, b))
		}

	case timing.SameRankOtherBankgroup:
		for bg := 0; bg < s.bankgroups; bg++ {
			if bg == cmd.Bankgroup {
				continue
			}
			for b := 0; b < s.banksPerGroup; b++ {
				fn(s.bankAt(cmd.Rank, bg, b))
			}
		}

	case timing.DifferentRank:
		for r := 0; r < s.ranks; r++ {
			if r == cmd.Rank {
				continue
			}
			for bg := 0; bg < s.bankgroups; bg++ {
				for b := 0; b < s.banksPerGroup; b++ {
					fn(s.bankAt(r, bg, b))
				}
			}
		}

	case timing.SameRank:
		for bg := 0; bg < s.bankgroups; bg++ {
			for b := 0; b < s.banksPerGroup; b++ {
				fn(s.bankAt(cmd.Rank, bg, b))
			}
		}
	}
}

func (s *State) anyOpenInRank(rank int) bool {
	for bg := 0; bg < s.bankgroups; bg++ {
		for b := 0; b < s.banksPerGroup; b++ {
			if s.bankAt(rank, bg, b).State == bank.Open {
				return true
			}
		}
	}
	return false
}

func (s *State) allClosedInRank(rank int) bool {
	for bg := 0; bg < s.bankgroups; bg++ {
		for b := 0; b < s.banksPerGroup; b++ {
			if s.bankAt(rank, bg, b).State != bank.Closed {
				return false
			}
		}
	}
	return true
}

// NumBanksPerRank returns bankgroups * banks_per_group.
func (s *State) NumBanksPerRank() int { return s.bankgroups * s.banksPerGroup }

// Ranks returns the number of ranks in this channel.
func (s *State) Ranks() int { return s.ranks }

// Bankgroups returns the number of bankgroups per rank.
func (s *State) Bankgroups() int { return s.bankgroups }

// BanksPerGroup returns the number of banks per bankgroup.
func (s *State) BanksPerGroup() int { return s.banksPerGroup }
