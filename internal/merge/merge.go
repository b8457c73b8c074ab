package merge

import (
	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/monitoring"
)

// Dataset is the unified result of one merge, before output formatting.
// Every scalar column and compound table has one row per dive in Headers
// order.
type Dataset struct {
	Headers []dive.Header
	Sources []string
	Devices [][]string
	Sensors [][]string
	// MissionStart is the earliest dive start time, NaN when empty.
	MissionStart float64
	Schema       *Schema

	Scalars   Fields[*Column]
	Compounds Fields[*Table]
	Blocks    Fields[*Table]
}

// Len returns the number of dives.
func (d *Dataset) Len() int { return len(d.Headers) }

// Build runs the merge pipeline up to, but not including, output
// formatting. snapshots may be nil.
func Build(records []dive.Record, snapshots []dive.Snapshot, opts Options) (*Dataset, error) {
	if err := opts.validateOrdering(); err != nil {
		return nil, err
	}
	corpus, err := Normalize(records, snapshots)
	if err != nil {
		return nil, err
	}
	sorted := Order(corpus, opts.Period, opts.ordering())
	schema := Unify(sorted, opts.Params)

	ds := &Dataset{
		Headers:      make([]dive.Header, sorted.Len()),
		Sources:      sorted.Sources,
		Devices:      sorted.Devices,
		Sensors:      sorted.Sensors,
		MissionStart: missionStart(sorted.Records),
		Schema:       schema,
		Scalars:      mergeScalars(sorted, schema),
		Compounds:    mergeCompounds(sorted, schema),
		Blocks:       mergeBlocks(sorted, schema, opts.timeColumns()),
	}
	for i, r := range sorted.Records {
		ds.Headers[i] = r.Header
	}
	if ds.Sources == nil {
		ds.Sources, ds.Devices, ds.Sensors = []string{}, [][]string{}, [][]string{}
	}

	monitoring.Debugf("merge: %d of %d dives kept, %d scalars, %d compounds, %d blocks",
		ds.Len(), corpus.Len(), ds.Scalars.Len(), ds.Compounds.Len(), ds.Blocks.Len())
	return ds, nil
}

// Merge merges records and formats the result. Options are given as one
// config value or as key/value pairs; see ParseOptions.
func Merge(records []dive.Record, args ...any) (*Output, error) {
	return MergeSnapshots(records, nil, args...)
}

// MergeSnapshots is Merge with a parallel list of raw-value snapshots,
// one per record.
func MergeSnapshots(records []dive.Record, snapshots []dive.Snapshot, args ...any) (*Output, error) {
	opts, err := ParseOptions(args...)
	if err != nil {
		return nil, err
	}
	ds, err := Build(records, snapshots, opts)
	if err != nil {
		return nil, err
	}
	return FormatDataset(ds, opts.Format)
}

// firstKind returns the kind of the first present value reported by next,
// or KindNumber when none is present.
func firstKind(n int, next func(i int) (dive.Value, bool)) dive.Kind {
	for i := 0; i < n; i++ {
		if v, ok := next(i); ok {
			return v.Kind
		}
	}
	return dive.KindNumber
}

func setLogged(c *Column, i int, v dive.Value, field string) {
	if c.Set(i, v) {
		monitoring.Debugf("merge: %s value %v converted to %s", field, v, c.Kind)
	}
}
