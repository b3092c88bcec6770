package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcjacoby/dramsim3go/internal/config"
)

var dumpResolved bool

func init() {
	validateConfigCmd.Flags().BoolVar(&dumpResolved, "dump", false, "print the fully resolved configuration as YAML")
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate a configuration file without running the simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("config OK: %d channel(s), %s queues, %s refresh, protocol %s\n",
			cfg.Topology.Channels, cfg.QueueStructure, cfg.RefreshStrategy, cfg.Protocol)
		if dumpResolved {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshaling resolved config: %w", err)
			}
			fmt.Print(string(out))
		}
		return nil
	},
}
