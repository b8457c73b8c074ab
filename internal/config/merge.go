package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/glider-logs/internal/timeutil"
)

// DefaultConfigPath is the path to the checked-in merge defaults file.
const DefaultConfigPath = "config/merge.defaults.json"

// Option values accepted by MergeConfig. The merge package defines the same
// names; they are repeated here so config stays free of engine imports.
const (
	FormatArray  = "array"
	FormatMerged = "merged"
	FormatStruct = "struct"

	OrderLexicographic = "lexicographic"
	OrderRank          = "rank"

	// All selects every parameter or the whole period.
	All = "all"
)

// DefaultBlocks maps the event-style block names logged by the glider to
// the column holding elapsed seconds since dive start. An empty column name
// means the block carries no elapsed-time column.
var DefaultBlocks = map[string]string{
	"GC":    "st_secs",
	"STATE": "secs",
	"GPS":   "",
}

// PeriodConfig bounds the dives kept by start time. Both ends are
// inclusive and accept epoch seconds or RFC3339.
type PeriodConfig struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MergeConfig is the JSON form of the merge options. Omitted fields fall
// back to the defaults returned by the Get* methods, so partial configs
// are safe.
type MergeConfig struct {
	Format   *string           `json:"format,omitempty"`
	Params   []string          `json:"params,omitempty"` // omitted or ["all"] selects everything
	Period   *PeriodConfig     `json:"period,omitempty"`
	Ordering *string           `json:"ordering,omitempty"`
	Blocks   map[string]string `json:"blocks,omitempty"`
	Verbose  *bool             `json:"verbose,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }

// EmptyMergeConfig returns a MergeConfig with every field unset.
func EmptyMergeConfig() *MergeConfig {
	return &MergeConfig{}
}

// DefaultMergeConfig returns a MergeConfig with every field set to its
// default value.
func DefaultMergeConfig() *MergeConfig {
	return &MergeConfig{
		Format:   ptrString(FormatArray),
		Params:   []string{All},
		Ordering: ptrString(OrderLexicographic),
		Blocks:   maps.Clone(DefaultBlocks),
		Verbose:  ptrBool(false),
	}
}

// LoadMergeConfig loads a MergeConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadMergeConfig(path string) (*MergeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseMergeConfig(data)
}

// MustLoadDefaultConfig loads the checked-in defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *MergeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadMergeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ParseMergeConfig decodes and validates a JSON merge config. Unknown keys
// are rejected.
func ParseMergeConfig(data []byte) (*MergeConfig, error) {
	cfg := EmptyMergeConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *MergeConfig) Validate() error {
	if c.Format != nil {
		switch strings.ToLower(*c.Format) {
		case FormatArray, FormatMerged, FormatStruct:
		default:
			return fmt.Errorf("format must be one of array, merged, struct; got %q", *c.Format)
		}
	}

	if c.Ordering != nil {
		switch strings.ToLower(*c.Ordering) {
		case OrderLexicographic, OrderRank:
		default:
			return fmt.Errorf("ordering must be lexicographic or rank, got %q", *c.Ordering)
		}
	}

	if slices.Contains(c.Params, "") {
		return fmt.Errorf("params must not contain empty names")
	}

	if c.Period != nil {
		if _, _, err := c.parsePeriod(); err != nil {
			return err
		}
	}

	for name := range c.Blocks {
		if name == "" {
			return fmt.Errorf("blocks must not contain an empty block name")
		}
	}
	return nil
}

func (c *MergeConfig) parsePeriod() (float64, float64, error) {
	start, err := timeutil.ParseEpoch(c.Period.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period start: %w", err)
	}
	end, err := timeutil.ParseEpoch(c.Period.End)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period end: %w", err)
	}
	if start > end {
		return 0, 0, fmt.Errorf("period start %v is after end %v", start, end)
	}
	return start, end, nil
}

// GetFormat returns the lower-cased output format or the default.
func (c *MergeConfig) GetFormat() string {
	if c.Format == nil || *c.Format == "" {
		return FormatArray
	}
	return strings.ToLower(*c.Format)
}

// GetParams returns the parameter allow-list, or nil when every parameter
// is selected.
func (c *MergeConfig) GetParams() []string {
	if len(c.Params) == 0 || (len(c.Params) == 1 && strings.EqualFold(c.Params[0], All)) {
		return nil
	}
	return slices.Clone(c.Params)
}

// GetPeriod returns the inclusive start time window. ok is false when the
// whole period is selected or the period does not parse.
func (c *MergeConfig) GetPeriod() (start, end float64, ok bool) {
	if c.Period == nil {
		return 0, 0, false
	}
	start, end, err := c.parsePeriod()
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// GetOrdering returns the lower-cased dive ordering or the default.
func (c *MergeConfig) GetOrdering() string {
	if c.Ordering == nil || *c.Ordering == "" {
		return OrderLexicographic
	}
	return strings.ToLower(*c.Ordering)
}

// GetBlocks returns the event block time columns. Entries in the config
// are added to, and override, DefaultBlocks.
func (c *MergeConfig) GetBlocks() map[string]string {
	out := maps.Clone(DefaultBlocks)
	maps.Copy(out, c.Blocks)
	return out
}

// GetVerbose returns the verbose value or the default.
func (c *MergeConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// Overlay returns a copy of c with every field set in o taken from o.
// Blocks are merged key by key. A nil o returns a copy of c.
func (c *MergeConfig) Overlay(o *MergeConfig) *MergeConfig {
	out := &MergeConfig{
		Format:   c.Format,
		Params:   slices.Clone(c.Params),
		Period:   c.Period,
		Ordering: c.Ordering,
		Blocks:   maps.Clone(c.Blocks),
		Verbose:  c.Verbose,
	}
	if o == nil {
		return out
	}
	if o.Format != nil {
		out.Format = o.Format
	}
	if len(o.Params) > 0 {
		out.Params = slices.Clone(o.Params)
	}
	if o.Period != nil {
		out.Period = o.Period
	}
	if o.Ordering != nil {
		out.Ordering = o.Ordering
	}
	if len(o.Blocks) > 0 {
		if out.Blocks == nil {
			out.Blocks = make(map[string]string, len(o.Blocks))
		}
		maps.Copy(out.Blocks, o.Blocks)
	}
	if o.Verbose != nil {
		out.Verbose = o.Verbose
	}
	return out
}
