package merge

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/banshee-data/glider-logs/internal/config"
)

// Format selects the output representation of compound fields and blocks.
type Format string

const (
	// FormatArray keeps compounds as record x member tables. It is the
	// default and the only form that keeps member grouping and order.
	FormatArray Format = config.FormatArray
	// FormatMerged explodes every compound into <field>_<member> columns.
	// The grouping cannot be recovered from this form.
	FormatMerged Format = config.FormatMerged
	// FormatStruct turns every compound into an array of per-row records.
	FormatStruct Format = config.FormatStruct
)

// ParseFormat validates a format selector. The empty string selects array.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatArray, nil
	case FormatArray, FormatMerged, FormatStruct:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want array, merged or struct)", ErrInvalidOutputFormat, s)
}

// Ordering selects how dives are sorted.
type Ordering string

const (
	// OrderLexicographic sorts by mission number, then dive number.
	OrderLexicographic Ordering = config.OrderLexicographic
	// OrderRank sorts by the legacy composite rank
	// (dive - minDive) + (mission - minMission) * (maxDive - minDive + 1).
	OrderRank Ordering = config.OrderRank
)

// Period is an inclusive window on dive start time, in epoch seconds.
type Period struct {
	Start float64
	End   float64
}

// Contains reports whether t lies in [Start, End].
func (p Period) Contains(t float64) bool {
	return t >= p.Start && t <= p.End
}

// Options controls one merge call. The zero value merges every dive and
// every parameter into the array format.
type Options struct {
	Format Format
	// Params is the field / field_member allow-list. Nil selects all.
	Params []string
	// Period restricts dives by start time. Nil selects all.
	Period *Period
	// Ordering defaults to OrderLexicographic.
	Ordering Ordering
	// TimeColumns maps block names to their elapsed-time column. Nil uses
	// config.DefaultBlocks.
	TimeColumns map[string]string
}

// DefaultOptions returns the options used when a merge gets none.
func DefaultOptions() Options {
	return Options{
		Format:      FormatArray,
		Ordering:    OrderLexicographic,
		TimeColumns: maps.Clone(config.DefaultBlocks),
	}
}

func (o Options) ordering() Ordering {
	if o.Ordering == "" {
		return OrderLexicographic
	}
	return o.Ordering
}

func (o Options) timeColumns() map[string]string {
	if o.TimeColumns == nil {
		return config.DefaultBlocks
	}
	return o.TimeColumns
}

// OptionsFromConfig converts a validated MergeConfig into Options.
func OptionsFromConfig(cfg *config.MergeConfig) (Options, error) {
	if cfg == nil {
		return DefaultOptions(), nil
	}
	if cfg.Format != nil {
		if _, err := ParseFormat(*cfg.Format); err != nil {
			return Options{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	opts := Options{
		Format:      Format(cfg.GetFormat()),
		Params:      cfg.GetParams(),
		Ordering:    Ordering(cfg.GetOrdering()),
		TimeColumns: cfg.GetBlocks(),
	}
	if start, end, ok := cfg.GetPeriod(); ok {
		opts.Period = &Period{Start: start, End: end}
	}
	return opts, nil
}

// ParseOptions builds Options from either a single configuration value
// (Options, *Options, config.MergeConfig or *config.MergeConfig) or an
// even-length list of key/value pairs. Keys are case-insensitive:
//
//	format    string or Format
//	params    "all", a single name, or []string
//	period    "all", Period, *Period, [2]float64 or []float64{start, end}
//	ordering  "lexicographic" or "rank"
//	blocks    map[string]string of block name to elapsed-time column
//
// An unknown format fails with ErrInvalidOutputFormat, any other bad value
// with ErrInvalidOptions.
func ParseOptions(args ...any) (Options, error) {
	opts := DefaultOptions()
	if len(args) == 0 {
		return opts, nil
	}

	if len(args) == 1 {
		switch v := args[0].(type) {
		case Options:
			return v, v.validate()
		case *Options:
			if v == nil {
				return opts, nil
			}
			return *v, v.validate()
		case config.MergeConfig:
			return OptionsFromConfig(&v)
		case *config.MergeConfig:
			return OptionsFromConfig(v)
		}
	}

	if len(args)%2 != 0 {
		return Options{}, fmt.Errorf("%w: want one config value or key/value pairs, got %d arguments", ErrInvalidOptions, len(args))
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return Options{}, fmt.Errorf("%w: option key at position %d is %T, not a string", ErrInvalidOptions, i, args[i])
		}
		if err := opts.set(strings.ToLower(key), args[i+1]); err != nil {
			return Options{}, err
		}
	}
	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// validate checks the format and ordering selectors. Empty values select
// the defaults.
func (o Options) validate() error {
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	return o.validateOrdering()
}

func (o Options) validateOrdering() error {
	switch o.Ordering {
	case "", OrderLexicographic, OrderRank:
		return nil
	}
	return fmt.Errorf("%w: unknown ordering %q (want lexicographic or rank)", ErrInvalidOptions, o.Ordering)
}

func (o *Options) set(key string, value any) error {
	bad := func() error {
		return fmt.Errorf("%w: unsupported value %v (%T) for %q", ErrInvalidOptions, value, value, key)
	}

	switch key {
	case "format":
		switch v := value.(type) {
		case string:
			o.Format = Format(strings.ToLower(v))
		case Format:
			o.Format = v
		default:
			return bad()
		}

	case "params":
		switch v := value.(type) {
		case string:
			if strings.EqualFold(v, config.All) {
				o.Params = nil
			} else {
				o.Params = []string{v}
			}
		case []string:
			if len(v) == 1 && strings.EqualFold(v[0], config.All) {
				o.Params = nil
			} else {
				o.Params = slices.Clone(v)
			}
		default:
			return bad()
		}

	case "period":
		switch v := value.(type) {
		case string:
			if !strings.EqualFold(v, config.All) {
				return bad()
			}
			o.Period = nil
		case Period:
			o.Period = &v
		case *Period:
			o.Period = v
		case [2]float64:
			o.Period = &Period{Start: v[0], End: v[1]}
		case []float64:
			if len(v) != 2 {
				return bad()
			}
			o.Period = &Period{Start: v[0], End: v[1]}
		default:
			return bad()
		}

	case "ordering":
		switch v := value.(type) {
		case string:
			o.Ordering = Ordering(strings.ToLower(v))
		case Ordering:
			o.Ordering = v
		default:
			return bad()
		}
		if o.Ordering != OrderLexicographic && o.Ordering != OrderRank {
			return bad()
		}

	case "blocks":
		v, ok := value.(map[string]string)
		if !ok {
			return bad()
		}
		o.TimeColumns = maps.Clone(v)

	default:
		return fmt.Errorf("%w: unknown option %q", ErrInvalidOptions, key)
	}
	return nil
}
