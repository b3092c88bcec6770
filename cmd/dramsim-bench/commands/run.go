package commands

import (
	"bufio"
	"context"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/logging"
)

var (
	flagTrace        string
	flagCycles       uint64
	flagMetricsAddr  string
	flagWriteRatio   float64
	flagSeed         int64
	flagStatsCSV     string
	flagAddressTrace string
	flagVerbose      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulator against a trace or a synthetic request stream",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&flagTrace, "trace", "", "address trace file (\"R|W hex_addr\" per line); omit for a synthetic stream")
	runCmd.Flags().Uint64Var(&flagCycles, "cycles", 1_000_000, "number of cycles to simulate")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().Float64Var(&flagWriteRatio, "write-ratio", 0.3, "fraction of synthetic requests that are writes")
	runCmd.Flags().Int64Var(&flagSeed, "seed", 1, "PRNG seed for the synthetic request stream")
	runCmd.Flags().StringVar(&flagStatsCSV, "stats-csv", "", "if set, also write final stats as CSV to this path")
	runCmd.Flags().StringVar(&flagAddressTrace, "address-trace-out", "", "if set, record every admitted request's cycle/direction/address here")
	runCmd.Flags().BoolVar(&flagVerbose, "v", false, "enable debug logging")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logLevel := logging.LevelInfo
	if flagVerbose {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{Level: logLevel, Output: os.Stderr})

	var reg *prometheus.Registry
	var srv *http.Server
	if flagMetricsAddr != "" {
		reg = prometheus.NewRegistry()
		srv = newMetricsServer(flagMetricsAddr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		logger.Infof("serving metrics on http://%s/metrics", flagMetricsAddr)
	}

	sys, err := newSystemFromFlags(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	var source requestSource
	if flagTrace != "" {
		f, err := os.Open(flagTrace)
		if err != nil {
			return err
		}
		defer f.Close()
		source = newTraceSource(f)
	} else {
		source = newSyntheticSource(cfg, flagSeed, flagWriteRatio)
	}

	recorder := newProgressLogger(logger, cfg.Output.EpochPeriod)

	var pending *pendingInsert
	for c := uint64(0); c < flagCycles; c++ {
		if pending == nil {
			if next, ok := source.Next(); ok {
				pending = &next
			}
		}
		if pending != nil && sys.InsertReq(pending.addr, pending.isWrite) {
			pending = nil
		}
		sys.ClockTick()
		recorder.tick(sys.Clock())
	}

	if err := sys.PrintStats(os.Stdout); err != nil {
		return err
	}
	if flagStatsCSV != "" {
		f, err := os.Create(flagStatsCSV)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := sys.WriteStatsCSV(f); err != nil {
			return err
		}
	}
	return nil
}

type pendingInsert struct {
	addr    uint64
	isWrite bool
}

// requestSource yields the next request to offer the simulator, or false
// once exhausted (a synthetic source never exhausts).
type requestSource interface {
	Next() (pendingInsert, bool)
}

type traceSource struct {
	scanner *bufio.Scanner
}

func newTraceSource(f *os.File) *traceSource {
	return &traceSource{scanner: bufio.NewScanner(f)}
}

func (t *traceSource) Next() (pendingInsert, bool) {
	if !t.scanner.Scan() {
		return pendingInsert{}, false
	}
	fields := strings.Fields(t.scanner.Text())
	if len(fields) < 2 {
		return t.Next()
	}
	isWrite := strings.EqualFold(fields[0], "W")
	addrStr := strings.TrimPrefix(fields[1], "0x")
	addr, err := strconv.ParseUint(addrStr, 16, 64)
	if err != nil {
		return t.Next()
	}
	return pendingInsert{addr: addr, isWrite: isWrite}, true
}

type syntheticSource struct {
	rng         *rand.Rand
	writeRatio  float64
	addressBits uint
}

func newSyntheticSource(cfg *config.Config, seed int64, writeRatio float64) *syntheticSource {
	bits := 0
	for i := 0; i < len(cfg.AddressMapping); i++ {
		bits++
	}
	return &syntheticSource{
		rng:         rand.New(rand.NewSource(seed)),
		writeRatio:  writeRatio,
		addressBits: uint(bits),
	}
}

func (s *syntheticSource) Next() (pendingInsert, bool) {
	addr := s.rng.Uint64() & ((uint64(1) << s.addressBits) - 1)
	return pendingInsert{addr: addr, isWrite: s.rng.Float64() < s.writeRatio}, true
}

// progressLogger throttles a debug log line to once per epoch so a long
// run doesn't spam stderr.
type progressLogger struct {
	log    *logging.Logger
	period uint64
}

func newProgressLogger(log *logging.Logger, period uint64) *progressLogger {
	return &progressLogger{log: log, period: period}
}

func (p *progressLogger) tick(clk uint64) {
	if p.period > 0 && clk%p.period == 0 {
		p.log.Debugf("cycle %d", clk)
	}
}
