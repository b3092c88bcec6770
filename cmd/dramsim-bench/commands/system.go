package commands

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcjacoby/dramsim3go"
	"github.com/rcjacoby/dramsim3go/internal/config"
	"github.com/rcjacoby/dramsim3go/internal/logging"
)

// newSystemFromFlags builds a dramsim.System wired to the CLI's
// --metrics-addr and --address-trace-out flags.
func newSystemFromFlags(cfg *config.Config, reg *prometheus.Registry, logger *logging.Logger) (*dramsim.System, error) {
	opts := []dramsim.Option{dramsim.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, dramsim.WithMetricsRegistry(reg))
	}
	if flagAddressTrace != "" {
		opts = append(opts, dramsim.WithAddressTrace(flagAddressTrace))
	}
	return dramsim.NewSystem(cfg, opts...)
}
