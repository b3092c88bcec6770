// Package controller implements the per-channel Controller of spec.md §4.5:
// the single ClockTick loop that ties the command queue, channel state, and
// refresh engine together, plus the request-admission surface the facade
// calls into. Grounded on the teacher repository's queue/runner.go event
// loop (one decision per tick, explicit state transitions, no goroutines
// hidden inside the hot path).
package controller

import (
	"github.com/rcjacoby/dramsim3go/internal/addrmap"
	"github.com/rcjacoby/dramsim3go/internal/channel"
	"github.com/rcjacoby/dramsim3go/internal/cmdqueue"
	"github.com/rcjacoby/dramsim3go/internal/command"
	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/logging"
	"github.com/rcjacoby/dramsim3go/internal/refresh"
	"github.com/rcjacoby/dramsim3go/internal/stats"
	"github.com/rcjacoby/dramsim3go/internal/timing"
)

// Callback is invoked when a READ or WRITE completes its data transfer.
type Callback func(hexAddr uint64)

// pendingCompletion is a scheduled data-transfer completion, fired at a
// specific future cycle.
type pendingCompletion struct {
	req     *command.Request
	isWrite bool
}

// Controller owns one channel's ChannelState, CommandQueue, and Refresh
// Engine, and drives them one cycle at a time.
type Controller struct {
	id  int
	cfg *config.Config
	log *logging.Logger

	clk uint64

	mapper  *addrmap.Mapper
	channel *channel.State
	queue   *cmdqueue.Queue
	refresh *refresh.Engine
	stats   *stats.Stats

	trfc uint64

	readDelay  uint64
	writeDelay uint64

	nextReqID uint64
	inflight  map[uint64]*command.Request

	// completions[clk] fires during the tick whose clock value is clk,
	// after that tick's issue step.
	completions map[uint64][]pendingCompletion
	// refreshDone[clk] closes a bank (or rank) once its tRFC window elapses,
	// mirroring bank.EndRefresh's split from UpdateState (see channel.go).
	refreshDone map[uint64][]refreshClose

	// staging holds requests accepted under NoBackpressure when their FIFO
	// was full at admission time; drained opportunistically each tick.
	staging []*command.Request

	onRead  Callback
	onWrite Callback
}

type refreshClose struct {
	rank      int
	rankLevel bool
	bankgroup int
	bank      int
}

// New builds a Controller for channel id from cfg, wiring a fresh
// ChannelState, CommandQueue, Refresh Engine, and Statistics block.
func New(id int, cfg *config.Config, st *stats.Stats, log *logging.Logger) (*Controller, error) {
	mapper, err := addrmap.New(cfg.Topology, cfg.AddressMapping)
	if err != nil {
		return nil, err
	}
	table := timing.Build(cfg)
	ch := channel.New(cfg.Topology, table)
	q, err := cmdqueue.New(cfg, ch, st)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		id:          id,
		cfg:         cfg,
		log:         log,
		mapper:      mapper,
		channel:     ch,
		queue:       q,
		refresh:     refresh.New(cfg),
		stats:       st,
		trfc:        uint64(cfg.Timing.TRFC),
		readDelay:   uint64(cfg.Timing.TCL) + uint64(cfg.Topology.BurstLength)/2,
		writeDelay:  uint64(cfg.Timing.TCWL) + uint64(cfg.Topology.BurstLength)/2,
		inflight:    make(map[uint64]*command.Request),
		completions: make(map[uint64][]pendingCompletion),
		refreshDone: make(map[uint64][]refreshClose),
	}
	return c, nil
}

// RegisterCallbacks sets the read/write data-transfer completion handlers.
func (c *Controller) RegisterCallbacks(onRead, onWrite Callback) {
	c.onRead = onRead
	c.onWrite = onWrite
}

// Clock returns the current cycle count.
func (c *Controller) Clock() uint64 { return c.clk }

// WillAccept reports whether a request to hexAddr could be admitted right
// now without relying on NoBackpressure staging.
func (c *Controller) WillAccept(hexAddr uint64) bool {
	d := c.mapper.Decode(hexAddr)
	return c.queue.WillAccept(d.Rank, d.Bankgroup, d.Bank)
}

// InsertReq admits a new memory request, per spec.md §4.5's admission
// rule. It returns false only when the target FIFO is full and
// NoBackpressure is not set.
func (c *Controller) InsertReq(hexAddr uint64, isWrite bool) bool {
	d := c.mapper.Decode(hexAddr)
	c.nextReqID++
	req := &command.Request{
		ID: c.nextReqID, IsWrite: isWrite, HexAddr: hexAddr, ArrivalCycle: c.clk,
	}
	cmdType := command.READ
	if isWrite {
		cmdType = command.WRITE
	}
	req.Cmd = command.Command{
		Type: cmdType, Rank: d.Rank, Bankgroup: d.Bankgroup, Bank: d.Bank,
		Row: d.Row, Column: d.Column, ID: req.ID,
	}

	if c.queue.WillAccept(d.Rank, d.Bankgroup, d.Bank) {
		c.queue.AddCommand(req.Cmd)
		c.inflight[req.ID] = req
		return true
	}
	if c.cfg.NoBackpressure {
		c.staging = append(c.staging, req)
		return true
	}
	return false
}

// QueueUsage sums the number of commands pending across every FIFO.
func (c *Controller) QueueUsage() int { return c.queue.QueueUsage() }

// Stats returns this channel's Statistics block, for the facade's printers.
func (c *Controller) Stats() *stats.Stats { return c.stats }

// ClockTick advances the channel by exactly one cycle, per spec.md §4.5.
func (c *Controller) ClockTick() {
	c.drainStaging()

	if due := c.refresh.Poll(c.clk); len(due) > 0 && c.log != nil {
		c.log.Debugf("channel %d: %d refresh obligation(s) newly due at cycle %d", c.id, len(due), c.clk)
	}

	issued := false
	if pending := c.refresh.FirstPending(); pending.Ok {
		issued = c.tryIssueRefresh(pending.Command)
	}
	if !issued {
		// blocked excludes only the scope(s) with a refresh obligation in
		// flight (spec.md §4.4) — every other bank/rank keeps issuing
		// normally this cycle.
		if cmd := c.queue.GetCommandToIssue(c.clk, c.refresh.Pending); cmd.Ok {
			c.issue(cmd.Command)
		}
	}

	c.fireCompletions()
	c.closeRefreshedBanks()
	c.stats.RecordQueueUsage(c.queue.QueueUsage())

	c.clk++
}

// drainStaging tries to move NoBackpressure-staged requests into the real
// queue, oldest first, stopping at the first one that still does not fit.
func (c *Controller) drainStaging() {
	for len(c.staging) > 0 {
		req := c.staging[0]
		d := req.Cmd
		if !c.queue.WillAccept(d.Rank, d.Bankgroup, d.Bank) {
			return
		}
		c.queue.AddCommand(d)
		c.inflight[req.ID] = req
		c.staging = c.staging[1:]
	}
}

// tryIssueRefresh attempts to service the single outstanding refresh
// obligation surfaced by the Refresh Engine: if the rank (or bank) still
// has open rows, GetRequiredCommand hands back a PRECHARGE first; only
// once that settles does the actual REFRESH/REFRESH_BANK issue. Reports
// whether a command was actually issued this cycle, so the caller knows
// whether the cycle's single issue slot is still available for ordinary
// commands targeting unrelated scopes.
func (c *Controller) tryIssueRefresh(marker command.Command) bool {
	required := c.channel.GetRequiredCommand(marker)
	if !required.Ok || !c.channel.IsReady(required.Command, c.clk) {
		return false
	}
	c.issue(required.Command)

	if required.Command.Type == command.REFRESH || required.Command.Type == command.REFRESH_BANK {
		c.refresh.Completed(marker.Rank, marker.Bankgroup, marker.Bank, c.clk)
		due := c.clk + c.trfc
		c.refreshDone[due] = append(c.refreshDone[due], refreshClose{
			rank: marker.Rank, rankLevel: c.refresh.RankLevel(),
			bankgroup: marker.Bankgroup, bank: marker.Bank,
		})
	}
	return true
}

// issue applies cmd's FSM transition and timing propagation, updates
// counters, and for a data-transfer command schedules its completion.
func (c *Controller) issue(cmd command.Command) {
	if cmd.Type.IsRW() {
		c.issueRW(cmd)
		return
	}

	c.channel.UpdateState(cmd)
	c.channel.UpdateTiming(cmd, c.clk)

	switch cmd.Type {
	case command.ACTIVATE:
		c.stats.RecordActivate()
	case command.PRECHARGE:
		c.stats.RecordPrecharge()
	case command.REFRESH, command.REFRESH_BANK:
		c.stats.RecordRefresh()
	}
}

// issueRW handles READ/WRITE (and their autoprecharge variants): row-hit
// classification happens here, before UpdateState resets/advances the
// bank's row-hit counter, then the request is removed from its FIFO and
// its data-transfer completion is scheduled.
func (c *Controller) issueRW(cmd command.Command) {
	rowHit := c.channel.RowHitCount(cmd.Rank, cmd.Bankgroup, cmd.Bank) > 0

	c.channel.UpdateState(cmd)
	c.channel.UpdateTiming(cmd, c.clk)

	c.queue.IssueRWCommand(cmd)

	req := c.inflight[cmd.ID]
	if req == nil {
		// A READ/WRITE with no matching in-flight Request is an invariant
		// violation and stops the simulation.
		panic("controller: issued READ/WRITE has no in-flight request")
	}

	latency := c.clk - req.ArrivalCycle
	c.stats.RecordRW(cmd.Type.IsWrite(), rowHit, latency)

	delay := c.readDelay
	if cmd.Type.IsWrite() {
		delay = c.writeDelay
	}
	due := c.clk + delay
	c.completions[due] = append(c.completions[due], pendingCompletion{req: req, isWrite: cmd.Type.IsWrite()})
}

// fireCompletions dispatches every data-transfer completion due this
// cycle and releases the originating Request.
func (c *Controller) fireCompletions() {
	due, ok := c.completions[c.clk]
	if !ok {
		return
	}
	for _, pc := range due {
		pc.req.CompletedAt = c.clk
		delete(c.inflight, pc.req.ID)
		if pc.isWrite {
			if c.onWrite != nil {
				c.onWrite(pc.req.HexAddr)
			}
		} else if c.onRead != nil {
			c.onRead(pc.req.HexAddr)
		}
	}
	delete(c.completions, c.clk)
}

// closeRefreshedBanks applies every EndRefresh transition due this cycle,
// the delayed half of the REFRESHING state split described in channel.go.
func (c *Controller) closeRefreshedBanks() {
	due, ok := c.refreshDone[c.clk]
	if !ok {
		return
	}
	for _, rc := range due {
		c.channel.EndRefresh(rc.rank, rc.rankLevel, rc.bankgroup, rc.bank)
	}
	delete(c.refreshDone, c.clk)
}
