// Package timing builds the static Timing Table described in spec.md §4.1:
// for each command type, the list of (scope, affected command, delta)
// triples that propagate when that command is issued.
package timing

import (
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
)

// Scope names which banks an entry's delta applies to, relative to the
// bank a command was just issued to.
type Scope int

const (
	SameBank Scope = iota
	SameBankgroupOtherBank
	SameRankOtherBankgroup
	DifferentRank
	SameRank
)

// Entry is one propagation rule: issuing the owning command type advances
// Affected's earliest-legal cycle to at least (issue cycle + Delta) for
// every bank in Scope.
type Entry struct {
	Scope    Scope
	Affected command.Type
	Delta    int
}

// Table maps a command type to the list of entries it triggers on issue.
// This is the only mechanism timing constraints propagate through
// (spec.md §4.1).
type Table map[command.Type][]Entry

// Build constructs the Timing Table from cfg's timing parameters. The rule
// set follows JEDEC DDR4-style constraints; cfg.Protocol is not read, so
// every protocol gets this same rule set with its deltas taken from
// cfg.Timing. The design note in spec.md §9 favors a
// tagged-enum-plus-static-table over virtual dispatch on the hot path.
func Build(cfg *config.Config) Table {
	t := cfg.Timing
	tbl := Table{}

	add := func(trigger command.Type, entries ...Entry) {
		tbl[trigger] = append(tbl[trigger], entries...)
	}

	add(command.ACTIVATE,
		Entry{SameBank, command.READ, t.TRCD},
		Entry{SameBank, command.WRITE, t.TRCD},
		Entry{SameBank, command.READ_PRECHARGE, t.TRCD},
		Entry{SameBank, command.WRITE_PRECHARGE, t.TRCD},
		Entry{SameBank, command.PRECHARGE, t.TRAS},
		Entry{SameBank, command.ACTIVATE, t.TRC},
		Entry{SameBankgroupOtherBank, command.ACTIVATE, t.TRRD},
		Entry{SameRankOtherBankgroup, command.ACTIVATE, t.TRRD},
		Entry{SameRank, command.ACTIVATE, t.TFAW},
	)

	add(command.READ,
		Entry{SameBank, command.READ, t.TCCDL},
		Entry{SameBank, command.PRECHARGE, t.TRTP},
		Entry{SameBankgroupOtherBank, command.READ, t.TCCDL},
		Entry{SameRankOtherBankgroup, command.READ, t.TCCDS},
		Entry{SameRankOtherBankgroup, command.WRITE, t.TCCDS},
		Entry{DifferentRank, command.READ, t.TCCDS},
		Entry{DifferentRank, command.WRITE, t.TCCDS},
	)

	add(command.READ_PRECHARGE,
		Entry{SameBank, command.ACTIVATE, t.TRTP + t.TRP},
		Entry{SameBankgroupOtherBank, command.READ, t.TCCDL},
		Entry{SameRankOtherBankgroup, command.READ, t.TCCDS},
		Entry{DifferentRank, command.READ, t.TCCDS},
	)

	add(command.WRITE,
		Entry{SameBank, command.WRITE, t.TCCDL},
		Entry{SameBank, command.PRECHARGE, t.TCWL + t.TCCDL + t.TWR},
		Entry{SameBankgroupOtherBank, command.WRITE, t.TCCDL},
		Entry{SameRankOtherBankgroup, command.READ, t.TCWL + t.TCCDS + t.TWTR},
		Entry{SameRankOtherBankgroup, command.WRITE, t.TCCDS},
		Entry{DifferentRank, command.READ, t.TCWL + t.TCCDS + t.TWTR},
		Entry{DifferentRank, command.WRITE, t.TCCDS},
	)

	add(command.WRITE_PRECHARGE,
		Entry{SameBank, command.ACTIVATE, t.TCWL + t.TCCDL + t.TWR + t.TRP},
		Entry{SameBankgroupOtherBank, command.WRITE, t.TCCDL},
		Entry{SameRankOtherBankgroup, command.READ, t.TCWL + t.TCCDS + t.TWTR},
		Entry{DifferentRank, command.READ, t.TCWL + t.TCCDS + t.TWTR},
	)

	add(command.PRECHARGE,
		Entry{SameBank, command.ACTIVATE, t.TRP},
	)

	add(command.REFRESH,
		Entry{SameRank, command.ACTIVATE, t.TRFC},
		Entry{SameRank, command.REFRESH, t.TRFC},
	)

	add(command.REFRESH_BANK,
		Entry{SameBank, command.ACTIVATE, t.TRFC},
	)

	return tbl
}
