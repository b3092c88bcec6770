// Package dramsim is a cycle-accurate simulator of a JEDEC DRAM subsystem:
// address mapping, per-bank timing and state, FR-FCFS command scheduling,
// and periodic refresh, driven one cycle at a time through System.ClockTick.
package dramsim

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcjacoby/dramsim3go/internal/addrmap"
	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/controller"
	"github.com/rcjacoby/dramsim3go/internal/logging"
	"github.com/rcjacoby/dramsim3go/internal/stats"
)

// systemIDCounter replaces the original implementation's global mutable
// "next system id" static variable with an explicit atomic counter (design
// note in SPEC_FULL.md §10): every NewSystem call gets a distinct, racy-safe
// ID without any package-level mutable state beyond the counter itself.
var systemIDCounter atomic.Uint64

// Callback is invoked when a read or write completes its data transfer.
type Callback = controller.Callback

// System is the top-level facade: one instance per simulated DRAM
// subsystem, owning one Controller per channel.
type System struct {
	id  uint64
	cfg *config.Config
	log *logging.Logger

	mapper      *addrmap.Mapper
	controllers []*controller.Controller
	registry    *prometheus.Registry

	clk         uint64
	epochPeriod uint64

	mu          sync.Mutex
	traceFile   *os.File
	traceWriter *bufio.Writer
}

// Option configures a System at construction time.
type Option func(*systemOptions)

type systemOptions struct {
	logger       *logging.Logger
	registry     *prometheus.Registry
	traceFile    string
}

// WithLogger overrides the default logger (logging.Default()).
func WithLogger(l *logging.Logger) Option {
	return func(o *systemOptions) { o.logger = l }
}

// WithMetricsRegistry registers every channel's Statistics as Prometheus
// instruments on reg, instead of leaving them unexported.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *systemOptions) { o.registry = reg }
}

// WithAddressTrace creates (or truncates) path and writes a
// "<cycle> <R|W> <hex_addr>" line for every admitted request, matching the address-trace format consumed
// by dramsim3's own trace-replay tooling.
func WithAddressTrace(path string) Option {
	return func(o *systemOptions) { o.traceFile = path }
}

// NewSystem validates cfg and builds one Controller per configured channel.
func NewSystem(cfg *config.Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "NewSystem", Code: ErrCodeConfigInvalid, Channel: -1, Inner: err}
	}

	o := &systemOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}

	mapper, err := addrmap.New(cfg.Topology, cfg.AddressMapping)
	if err != nil {
		return nil, &Error{Op: "NewSystem", Code: ErrCodeAddressMapping, Channel: -1, Inner: err}
	}

	s := &System{
		id:          systemIDCounter.Add(1),
		cfg:         cfg,
		log:         o.logger,
		mapper:      mapper,
		registry:    o.registry,
		epochPeriod: cfg.Output.EpochPeriod,
	}

	s.controllers = make([]*controller.Controller, cfg.Topology.Channels)
	for i := range s.controllers {
		st := stats.New(o.registry, cfg.Output.MetricsNamespace, i)
		c, err := controller.New(i, cfg, st, o.logger)
		if err != nil {
			return nil, &Error{Op: "NewSystem", Code: ErrCodeConfigInvalid, Channel: i, Inner: err}
		}
		s.controllers[i] = c
	}

	if o.traceFile != "" {
		f, err := os.Create(o.traceFile)
		if err != nil {
			return nil, &Error{Op: "NewSystem", Code: ErrCodeIO, Channel: -1, Inner: err}
		}
		s.traceFile = f
		s.traceWriter = bufio.NewWriter(f)
	}

	return s, nil
}

// ID returns this System's process-unique instance ID.
func (s *System) ID() uint64 { return s.id }

// Channels returns the number of channels this System simulates.
func (s *System) Channels() int { return len(s.controllers) }

// RegisterCallbacks installs the read/write data-transfer completion
// handlers on every channel.
func (s *System) RegisterCallbacks(onRead, onWrite Callback) {
	for _, c := range s.controllers {
		c.RegisterCallbacks(onRead, onWrite)
	}
}

// WillAccept reports whether a request to hexAddr could be admitted right
// now without relying on NoBackpressure staging.
func (s *System) WillAccept(hexAddr uint64) bool {
	d := s.mapper.Decode(hexAddr)
	return s.controllers[d.Channel].WillAccept(hexAddr)
}

// InsertReq admits a new memory request and routes it to the channel its
// address decodes to.
func (s *System) InsertReq(hexAddr uint64, isWrite bool) bool {
	d := s.mapper.Decode(hexAddr)
	ch := s.controllers[d.Channel]
	accepted := ch.InsertReq(hexAddr, isWrite)
	if accepted {
		s.writeTrace(ch.Clock(), isWrite, hexAddr)
	}
	return accepted
}

func (s *System) writeTrace(clk uint64, isWrite bool, hexAddr uint64) {
	if s.traceWriter == nil {
		return
	}
	dir := "R"
	if isWrite {
		dir = "W"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.traceWriter, "%d %s 0x%x\n", clk, dir, hexAddr)
}

// QueueUsage sums pending commands across every channel's FIFOs.
func (s *System) QueueUsage() int {
	total := 0
	for _, c := range s.controllers {
		total += c.QueueUsage()
	}
	return total
}

// ClockTick advances every channel by one cycle, then checks the epoch
// boundary for periodic stats output (spec.md §4.5/§6).
func (s *System) ClockTick() {
	for _, c := range s.controllers {
		c.ClockTick()
	}
	s.clk++
	if s.epochPeriod > 0 && s.clk%s.epochPeriod == 0 {
		if err := s.PrintEpochStats(os.Stdout); err != nil {
			s.log.Warnf("epoch stats print failed: %v", err)
		}
	}
}

// Clock returns the number of cycles ticked so far.
func (s *System) Clock() uint64 { return s.clk }

// Close flushes and closes the address-trace file, if one was opened.
func (s *System) Close() error {
	if s.traceWriter == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.traceWriter.Flush(); err != nil {
		return &Error{Op: "Close", Code: ErrCodeIO, Channel: -1, Inner: err}
	}
	return s.traceFile.Close()
}
