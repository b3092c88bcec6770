// Package refresh implements the Refresh Engine of spec.md §4.4: it
// injects per-rank or per-bank REFRESH commands at configured intervals
// into a waiting list the Controller consults before normal scheduling.
package refresh

import (
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
)

// pendingEntry tracks one outstanding refresh obligation: due at due,
// and — once Poll has surfaced it — blocking ordinary issuance to its
// scope until Completed is called.
type pendingEntry struct {
	due     uint64
	pending bool
}

// Engine maintains per-rank (or per-bank, under BankLevel) refresh
// counters and the waiting list the Controller drains each tick.
type Engine struct {
	strategy      config.RefreshStrategy
	interval      uint64
	ranks         int
	bankgroups    int
	banksPerGroup int

	// entries[rank] for RankLevel, entries[rank*banksPerRank+bankIdx] for
	// BankLevel.
	entries []pendingEntry
}

// New builds a Refresh Engine from cfg's refresh strategy and interval.
// Every rank (or bank) becomes due interval cycles after construction,
// matching a freshly reset DRAM device.
func New(cfg *config.Config) *Engine {
	e := &Engine{
		strategy:      cfg.RefreshStrategy,
		interval:      uint64(cfg.Timing.RefreshInterval),
		ranks:         cfg.Topology.Ranks,
		bankgroups:    cfg.Topology.BankGroups,
		banksPerGroup: cfg.Topology.BanksPerGroup,
	}
	n := e.ranks
	if e.strategy == config.BankLevel {
		n = e.ranks * e.bankgroups * e.banksPerGroup
	}
	e.entries = make([]pendingEntry, n)
	for i := range e.entries {
		e.entries[i] = pendingEntry{due: e.interval}
	}
	return e
}

func (e *Engine) index(rank, bankgroup, bnk int) int {
	if e.strategy == config.RankLevel {
		return rank
	}
	return rank*e.bankgroups*e.banksPerGroup + bankgroup*e.banksPerGroup + bnk
}

// Poll returns the refresh marker commands newly due at clk — at most one
// per rank (or bank) that was not already pending.
func (e *Engine) Poll(clk uint64) []command.Command {
	var due []command.Command
	for i := range e.entries {
		ent := &e.entries[i]
		if ent.pending || clk < ent.due {
			continue
		}
		ent.pending = true
		rank, bankgroup, bnk := e.coords(i)
		typ := command.REFRESH
		if e.strategy == config.BankLevel {
			typ = command.REFRESH_BANK
		}
		due = append(due, command.Command{Type: typ, Rank: rank, Bankgroup: bankgroup, Bank: bnk})
	}
	return due
}

// Pending reports whether a refresh obligation for (rank, bankgroup, bank)
// is currently outstanding — used to block conflicting ordinary issuance
// to that scope per spec.md §4.4.
func (e *Engine) Pending(rank, bankgroup, bnk int) bool {
	return e.entries[e.index(rank, bankgroup, bnk)].pending
}

// Completed clears the pending obligation and schedules the next refresh
// interval cycles from clk, once the Controller has actually issued the
// REFRESH (not just a preparatory PRECHARGE).
func (e *Engine) Completed(rank, bankgroup, bnk int, clk uint64) {
	ent := &e.entries[e.index(rank, bankgroup, bnk)]
	ent.pending = false
	ent.due = clk + e.interval
}

func (e *Engine) coords(i int) (rank, bankgroup, bnk int) {
	if e.strategy == config.RankLevel {
		return i, 0, 0
	}
	perRank := e.bankgroups * e.banksPerGroup
	rank = i / perRank
	rem := i % perRank
	bankgroup = rem / e.banksPerGroup
	bnk = rem % e.banksPerGroup
	return
}

// RankLevel reports whether this engine issues rank-wide REFRESH commands
// (as opposed to per-bank REFRESH_BANK commands).
func (e *Engine) RankLevel() bool { return e.strategy == config.RankLevel }

// FirstPending returns the marker command for the first outstanding
// (pending) refresh obligation, in entry order. The Controller consults
// this before normal scheduling each tick (spec.md §4.5 step 2): at most
// one refresh obligation is serviced per cycle, matching the one-command-
// per-cycle rule the rest of the pipeline observes.
func (e *Engine) FirstPending() command.Maybe {
	for i := range e.entries {
		if !e.entries[i].pending {
			continue
		}
		rank, bankgroup, bnk := e.coords(i)
		typ := command.REFRESH
		if e.strategy == config.BankLevel {
			typ = command.REFRESH_BANK
		}
		return command.Some(command.Command{Type: typ, Rank: rank, Bankgroup: bankgroup, Bank: bnk})
	}
	return command.None
}
