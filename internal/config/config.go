// Package config loads and validates the frozen configuration record that
// drives one DRAMSystem instance. Precedence, highest to lowest: DRAMSIM_*
// environment variables > config file > defaults. Load binds no CLI flags.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// QueueStructure selects how the command queue partitions pending commands.
type QueueStructure string

const (
	PerBank QueueStructure = "PER_BANK"
	PerRank QueueStructure = "PER_RANK"
)

// RefreshStrategy selects the granularity refresh commands are issued at.
type RefreshStrategy string

const (
	RankLevel RefreshStrategy = "RANK_LEVEL"
	BankLevel RefreshStrategy = "BANK_LEVEL"
)

// Protocol tags which JEDEC standard's static timing table to use.
type Protocol string

const (
	DDR3  Protocol = "DDR3"
	DDR4  Protocol = "DDR4"
	DDR5  Protocol = "DDR5"
	LPDDR4 Protocol = "LPDDR4"
	HBM2  Protocol = "HBM2"
	GDDR6 Protocol = "GDDR6"
)

// Topology describes the address hierarchy of a single channel.
type Topology struct {
	Channels      int `mapstructure:"channels" yaml:"channels" validate:"required,gt=0"`
	Ranks         int `mapstructure:"ranks" yaml:"ranks" validate:"required,gt=0"`
	BankGroups    int `mapstructure:"bankgroups" yaml:"bankgroups" validate:"required,gt=0"`
	BanksPerGroup int `mapstructure:"banks_per_group" yaml:"banks_per_group" validate:"required,gt=0"`
	Rows          int `mapstructure:"rows" yaml:"rows" validate:"required,gt=0"`
	Columns       int `mapstructure:"columns" yaml:"columns" validate:"required,gt=0"`
	DeviceWidth   int `mapstructure:"device_width" yaml:"device_width" validate:"required,gt=0"`
	BusWidth      int `mapstructure:"bus_width" yaml:"bus_width" validate:"required,gt=0"`
	BurstLength   int `mapstructure:"bl" yaml:"bl" validate:"required,gt=0"`
}

// Banks returns the number of banks per rank (bankgroups * banks_per_group).
func (t Topology) Banks() int { return t.BankGroups * t.BanksPerGroup }

// Timing holds the JEDEC per-parameter integer cycle counts.
type Timing struct {
	TRC   int `mapstructure:"trc" yaml:"trc" validate:"gte=0"`
	TRCD  int `mapstructure:"trcd" yaml:"trcd" validate:"gte=0"`
	TRP   int `mapstructure:"trp" yaml:"trp" validate:"gte=0"`
	TRAS  int `mapstructure:"tras" yaml:"tras" validate:"gte=0"`
	TRRD  int `mapstructure:"trrd" yaml:"trrd" validate:"gte=0"`
	TCCDL int `mapstructure:"tccd_l" yaml:"tccd_l" validate:"gte=0"`
	TCCDS int `mapstructure:"tccd_s" yaml:"tccd_s" validate:"gte=0"`
	TFAW  int `mapstructure:"tfaw" yaml:"tfaw" validate:"gte=0"`
	TWR   int `mapstructure:"twr" yaml:"twr" validate:"gte=0"`
	TWTR  int `mapstructure:"twtr" yaml:"twtr" validate:"gte=0"`
	TRFC  int `mapstructure:"trfc" yaml:"trfc" validate:"gte=0"`
	TCL   int `mapstructure:"tcl" yaml:"tcl" validate:"gte=0"`
	TRTP  int `mapstructure:"trtp" yaml:"trtp" validate:"gte=0"`
	TCWL  int `mapstructure:"tcwl" yaml:"tcwl" validate:"gte=0"`
	// RefreshInterval is the number of cycles between successive per-rank
	// (or per-bank, under BankLevel refresh strategy) REFRESH commands.
	RefreshInterval int `mapstructure:"refresh_interval" yaml:"refresh_interval" validate:"gt=0"`
}

// Output configures stats/trace emission.
type Output struct {
	Level             int    `mapstructure:"output_level" yaml:"output_level" validate:"gte=0,lte=3"`
	EpochPeriod       uint64 `mapstructure:"epoch_period" yaml:"epoch_period" validate:"gt=0"`
	StatsFilePrefix   string `mapstructure:"stats_file_prefix" yaml:"stats_file_prefix"`
	AddressTraceFile  string `mapstructure:"address_trace_file" yaml:"address_trace_file"`
	MetricsNamespace  string `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
}

// Config is the frozen record passed to every subsystem at construction.
type Config struct {
	Topology Topology `mapstructure:"topology" yaml:"topology"`
	Timing   Timing   `mapstructure:"timing" yaml:"timing"`
	Output   Output   `mapstructure:"output" yaml:"output"`

	QueueStructure QueueStructure `mapstructure:"queue_structure" yaml:"queue_structure" validate:"required,oneof=PER_BANK PER_RANK"`
	CmdQueueSize   int            `mapstructure:"cmd_queue_size" yaml:"cmd_queue_size" validate:"required,gt=0"`

	AddressMapping  string          `mapstructure:"address_mapping" yaml:"address_mapping" validate:"required"`
	RowHitCap       int             `mapstructure:"row_hit_cap" yaml:"row_hit_cap" validate:"gte=1"`
	RefreshStrategy RefreshStrategy `mapstructure:"refresh_strategy" yaml:"refresh_strategy" validate:"required,oneof=RANK_LEVEL BANK_LEVEL"`
	Protocol        Protocol        `mapstructure:"protocol" yaml:"protocol" validate:"required,oneof=DDR3 DDR4 DDR5 LPDDR4 HBM2 GDDR6"`

	// NoBackpressure approximates upstream CPU models that do not retry on a
	// full queue: insertions are buffered in an unbounded staging area and
	// drained into the real queue as space frees up, per spec.md §4.5.
	NoBackpressure bool `mapstructure:"no_backpressure" yaml:"no_backpressure"`
}

// Default returns a baseline DDR4-like single-channel configuration.
func Default() *Config {
	return &Config{
		Topology: Topology{
			Channels: 1, Ranks: 1, BankGroups: 4, BanksPerGroup: 4,
			Rows: 1 << 16, Columns: 1 << 10, DeviceWidth: 8, BusWidth: 64, BurstLength: 8,
		},
		Timing: Timing{
			TRC: 47, TRCD: 13, TRP: 13, TRAS: 33, TRRD: 5, TCCDL: 5, TCCDS: 4,
			TFAW: 20, TWR: 12, TWTR: 5, TRFC: 280, TCL: 13, TRTP: 5, TCWL: 12,
			RefreshInterval: 6240,
		},
		Output: Output{
			Level: 1, EpochPeriod: 100000,
			StatsFilePrefix:  "dramsim3",
			MetricsNamespace: "dramsim",
		},
		QueueStructure:  PerBank,
		CmdQueueSize:    16,
		AddressMapping:  "rrrrrrrrrrrrrrrrBBbbCCCCCCCccc",
		RowHitCap:       4,
		RefreshStrategy: RankLevel,
		Protocol:        DDR4,
	}
}

var validate = validator.New()

// Validate checks every configuration-fatal invariant named in spec.md §7:
// bad config value, unknown queue structure, inconsistent topology,
// unrecognized DRAM protocol, or invalid address-map string.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := validateAddressMapping(c.AddressMapping, c.Topology); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validateAddressMapping checks that the bit-order string names exactly the
// bits required to address every (channel, rank, bankgroup, bank, row,
// column) and nothing else, so the decode/encode round-trip in internal/addrmap is
// guaranteed bijective (invariant 8 in spec.md §8).
func validateAddressMapping(mapping string, topo Topology) error {
	counts := map[byte]int{}
	for i := 0; i < len(mapping); i++ {
		counts[mapping[i]]++
	}
	want := map[byte]int{
		'h': bitsFor(topo.Channels),
		'r': bitsFor(topo.Rows),
		'R': bitsFor(topo.Ranks),
		'B': bitsFor(topo.BankGroups),
		'b': bitsFor(topo.BanksPerGroup),
		'C': bitsFor(topo.Columns) - bitsFor(topo.BurstLength),
		'c': bitsFor(topo.BurstLength),
	}
	for tag, n := range want {
		if counts[tag] != n {
			return fmt.Errorf("address_mapping: tag %q expected %d bits, found %d", string(tag), n, counts[tag])
		}
	}
	for tag := range counts {
		if _, ok := want[tag]; !ok {
			return fmt.Errorf("address_mapping: unrecognized tag %q", string(tag))
		}
	}
	return nil
}

func bitsFor(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// Load reads configuration from the given file path (if non-empty),
// overlays DRAMSIM_* environment variables, merges it onto Default, and
// validates the result. A config-fatal error here must abort the program
// per spec.md §7/§6 Exit codes — callers in cmd/dramsim-bench do so.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DRAMSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	if err := v.MergeConfigMap(structToMap(def)); err != nil {
		return nil, fmt.Errorf("config: seeding defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	decoderOpt := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// structToMap round-trips through mapstructure's own encode path so the
// defaults seed viper using the same tag set Load decodes with.
func structToMap(cfg *Config) map[string]interface{} {
	out := map[string]interface{}{}
	_ = mapstructure.Decode(cfg, &out)
	return out
}
