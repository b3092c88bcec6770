// Package cmdqueue implements the per-bank or per-rank command FIFOs and
// the round-robin / FR-FCFS / on-demand-precharge arbitration policy
// described in spec.md §4.3, grounded directly on the teacher project's
// original_source/src/command_queue.cc.
package cmdqueue

import (
	"fmt"

	"github.com/rcjacoby/dramsim3go/internal/channel"
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
)

// StatsRecorder is the narrow write surface the queue needs into
// Statistics — it never reaches back into the Controller (design note in
// spec.md §9).
type StatsRecorder interface {
	RecordOnDemandPrecharge()
}

// Queue holds either ranks*banks FIFOs (PER_BANK) or ranks FIFOs
// (PER_RANK), per spec.md §3's CommandQueue invariants.
type Queue struct {
	structure config.QueueStructure
	size      int
	rowHitCap int

	ranks, bankgroups, banksPerGroup int

	fifos [][]command.Command

	nextRank, nextBankgroup, nextBank int

	channel *channel.State
	stats   StatsRecorder
}

// New builds a Queue for the given topology and queue structure.
func New(cfg *config.Config, ch *channel.State, stats StatsRecorder) (*Queue, error) {
	q := &Queue{
		structure:     cfg.QueueStructure,
		size:          cfg.CmdQueueSize,
		rowHitCap:     cfg.RowHitCap,
		ranks:         cfg.Topology.Ranks,
		bankgroups:    cfg.Topology.BankGroups,
		banksPerGroup: cfg.Topology.BanksPerGroup,
		channel:       ch,
		stats:         stats,
	}

	var numQueues int
	switch cfg.QueueStructure {
	case config.PerBank:
		numQueues = cfg.Topology.Ranks * cfg.Topology.Banks()
	case config.PerRank:
		numQueues = cfg.Topology.Ranks
	default:
		return nil, fmt.Errorf("cmdqueue: unsupported queue structure %q", cfg.QueueStructure)
	}

	q.fifos = make([][]command.Command, numQueues)
	for i := range q.fifos {
		q.fifos[i] = make([]command.Command, 0, cfg.CmdQueueSize)
	}
	return q, nil
}

func (q *Queue) queueIndex(rank, bankgroup, bnk int) int {
	if q.structure == config.PerRank {
		return rank
	}
	return rank*q.bankgroups*q.banksPerGroup + bankgroup*q.banksPerGroup + bnk
}

// WillAccept reports whether the target FIFO has room, per spec.md §4.3's
// admission rule.
func (q *Queue) WillAccept(rank, bankgroup, bnk int) bool {
	idx := q.queueIndex(rank, bankgroup, bnk)
	return len(q.fifos[idx]) < q.size
}

// AddCommand appends cmd to the FIFO selected by the queue structure,
// returning false if that FIFO is full.
func (q *Queue) AddCommand(cmd command.Command) bool {
	idx := q.queueIndex(cmd.Rank, cmd.Bankgroup, cmd.Bank)
	if len(q.fifos[idx]) >= q.size {
		return false
	}
	q.fifos[idx] = append(q.fifos[idx], cmd)
	return true
}

// ScopeBlocked reports whether a pending refresh obligation covers the
// given (rank, bankgroup, bank) scope, so ordinary issuance to it must
// wait — see Refresh Engine's Pending.
type ScopeBlocked func(rank, bankgroup, bank int) bool

// GetCommandToIssue runs one round of arbitration: the round-robin cursor
// advances one step per FIFO visited, and the first FIFO (in rotation
// order) with a ready command wins, so the next call resumes after the
// winner; a call that finds nothing rotates the cursor back to where it
// started, per spec.md §4.3. blocked excludes queued
// commands whose (rank, bankgroup, bank) scope has a refresh obligation
// in flight — spec.md §4.4 blocks ordinary issuance only to that scope,
// not to the whole channel.
func (q *Queue) GetCommandToIssue(clk uint64, blocked ScopeBlocked) command.Maybe {
	for i := 0; i < len(q.fifos); i++ {
		q.advanceCursor()
		idx := q.queueIndex(q.nextRank, q.nextBankgroup, q.nextBank)
		cmd := q.firstReadyInQueue(q.fifos[idx], clk, blocked)
		if !cmd.Ok {
			continue
		}
		if cmd.Command.Type == command.PRECHARGE {
			if !q.arbitratePrecharge(idx, cmd.Command) {
				return command.None
			}
		}
		return cmd
	}
	return command.None
}

// firstReadyInQueue scans the FIFO head-to-tail. For each queued command
// whose scope is not blocked by an in-flight refresh, it asks
// ChannelState for the actual command required next, and returns the
// first one that is ready right now. "First ready" is evaluated at the
// queued-command level (the position in this FIFO), matching the
// behavior witnessed in command_queue.cc — see DESIGN.md for the Open
// Question this resolves.
func (q *Queue) firstReadyInQueue(fifo []command.Command, clk uint64, blocked ScopeBlocked) command.Maybe {
	for _, queued := range fifo {
		if blocked(queued.Rank, queued.Bankgroup, queued.Bank) {
			continue
		}
		required := q.channel.GetRequiredCommand(queued)
		if !required.Ok {
			continue
		}
		if q.channel.IsReady(required.Command, clk) {
			return required
		}
	}
	return command.None
}

// arbitratePrecharge implements spec.md §4.3's row-hit-cap veto: a
// PRECHARGE yields to pending same-row requests in the same FIFO unless
// the row-hit cap has already been reached.
func (q *Queue) arbitratePrecharge(idx int, precharge command.Command) bool {
	openRow := q.channel.OpenRow(precharge.Rank, precharge.Bankgroup, precharge.Bank)
	pendingRowHit := false
	for _, c := range q.fifos[idx] {
		if c.Row == openRow && c.SameBank(precharge) {
			pendingRowHit = true
			break
		}
	}
	rowHitCapReached := q.channel.RowHitCount(precharge.Rank, precharge.Bankgroup, precharge.Bank) >= q.rowHitCap
	if !pendingRowHit || rowHitCapReached {
		q.stats.RecordOnDemandPrecharge()
		return true
	}
	return false
}

func (q *Queue) advanceCursor() {
	switch q.structure {
	case config.PerBank:
		q.nextBankgroup = (q.nextBankgroup + 1) % q.bankgroups
		if q.nextBankgroup == 0 {
			q.nextBank = (q.nextBank + 1) % q.banksPerGroup
			if q.nextBank == 0 {
				q.nextRank = (q.nextRank + 1) % q.ranks
			}
		}
	case config.PerRank:
		q.nextRank = (q.nextRank + 1) % q.ranks
	}
}

// IssueRWCommand removes the matching entry (by request ID) from its
// FIFO, once the Controller has actually issued it.
func (q *Queue) IssueRWCommand(cmd command.Command) {
	idx := q.queueIndex(cmd.Rank, cmd.Bankgroup, cmd.Bank)
	fifo := q.fifos[idx]
	for i, c := range fifo {
		if c.ID == cmd.ID {
			q.fifos[idx] = append(fifo[:i], fifo[i+1:]...)
			return
		}
	}
}

// QueueUsage sums the number of pending commands across every FIFO.
func (q *Queue) QueueUsage() int {
	usage := 0
	for _, fifo := range q.fifos {
		usage += len(fifo)
	}
	return usage
}
