package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atrim11/decafc/pkg/cli"
	"github.com/xyproto/env/v2"
)

type Feature int

const (
	FeatSpillReuse Feature = iota
	FeatBlockSpill
	FeatFreeDead
	FeatCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// ErrInvalid is returned by Validate for settings the backend cannot honour.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Features   map[Feature]Info
	FeatureMap map[string]Feature

	WordSize  int
	Registers int
	Entry     string

	StackTop int64
	MaxSteps int

	Trace bool
}

const (
	DefaultWordSize  = 8
	DefaultRegisters = 8
	DefaultStackTop  = 1 << 20
	DefaultMaxSteps  = 10_000_000
)

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		FeatureMap: make(map[string]Feature),
		WordSize:   DefaultWordSize,
		Registers:  DefaultRegisters,
		Entry:      "main",
		StackTop:   DefaultStackTop,
		MaxSteps:   DefaultMaxSteps,
	}

	features := map[Feature]Info{
		FeatSpillReuse: {"spill-reuse", true, "Keep the first stack slot of a spilled value and skip repeated stores."},
		FeatBlockSpill: {"block-spill", true, "Store live values and forget register contents at labels, jumps and branches."},
		FeatFreeDead:   {"free-dead", true, "Drop values with no further use instead of storing them when a register is needed."},
	}

	cfg.Features = features
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

// Clone returns a copy of c whose feature tables can be changed independently.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Features = make(map[Feature]Info, len(c.Features))
	for ft, info := range c.Features {
		cp.Features[ft] = info
	}
	cp.FeatureMap = make(map[string]Feature, len(c.FeatureMap))
	for name, ft := range c.FeatureMap {
		cp.FeatureMap[name] = ft
	}
	return &cp
}

// ApplyEnv overrides settings from DECAFC_* environment variables.
func (c *Config) ApplyEnv() {
	c.Registers = env.Int("DECAFC_REGISTERS", c.Registers)
	c.WordSize = env.Int("DECAFC_WORD_SIZE", c.WordSize)
	c.MaxSteps = env.Int("DECAFC_MAX_STEPS", c.MaxSteps)
	if env.Has("DECAFC_TRACE") {
		c.Trace = env.Bool("DECAFC_TRACE")
	}
	if flags := env.Str("DECAFC_FEATURES"); flags != "" {
		c.ProcessFlags(flags)
	}
}

func (c *Config) Validate() error {
	if c.Registers < 1 {
		return fmt.Errorf("%w: need at least one physical register, got %d", ErrInvalid, c.Registers)
	}
	switch c.WordSize {
	case 4, 8:
	default:
		return fmt.Errorf("%w: unsupported word size %d", ErrInvalid, c.WordSize)
	}
	if c.Entry == "" {
		return fmt.Errorf("%w: empty entry point", ErrInvalid)
	}
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(flag, "-"), "F")
	enable := true
	if strings.HasPrefix(trimmed, "no-") {
		trimmed = strings.TrimPrefix(trimmed, "no-")
		enable = false
	}
	if f, ok := c.FeatureMap[trimmed]; ok {
		c.SetFeature(f, enable)
	}
}

// ProcessFlags applies a whitespace separated list such as "-Fno-block-spill -Fspill-reuse".
func (c *Config) ProcessFlags(flagStr string) {
	for _, flag := range strings.Fields(flagStr) {
		c.applyFlag(flag)
	}
}

// SetupFlagGroups registers -F<feature> and -Fno-<feature> on fs. The returned
// entries are indexed by Feature and are read back by ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, FeatCount)
	for ft := Feature(0); ft < FeatCount; ft++ {
		info := c.Features[ft]
		enabled, disabled := info.Enabled, false
		entries[ft] = cli.FlagGroupEntry{Name: info.Name, Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	fs.AddFlagGroup("Allocator Features", "F", "feature", entries)
	return entries
}

// ApplyFlagGroups copies parsed feature switches into c. A -Fno- switch wins.
func (c *Config) ApplyFlagGroups(entries []cli.FlagGroupEntry) {
	for i, e := range entries {
		if e.Enabled != nil {
			c.SetFeature(Feature(i), *e.Enabled)
		}
		if e.Disabled != nil && *e.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// FeatureNames lists the feature names in sorted order.
func (c *Config) FeatureNames() []string {
	names := make([]string, 0, len(c.FeatureMap))
	for name := range c.FeatureMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
