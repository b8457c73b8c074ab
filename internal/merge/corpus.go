package merge

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/banshee-data/glider-logs/internal/dive"
)

// Corpus is a batch of dive records with their ancillary lists kept in
// parallel. After Order the records are sorted and the parallel slices
// follow the same order.
type Corpus struct {
	Records []dive.Record
	Sources []string
	Devices [][]string
	Sensors [][]string
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Normalize copies records into a Corpus, overlaying snapshots[i] onto
// records[i] when snapshots is non-nil. A nil or empty input yields an
// empty, usable corpus. The inputs are never modified.
func Normalize(records []dive.Record, snapshots []dive.Snapshot) (*Corpus, error) {
	if snapshots != nil && len(snapshots) != len(records) {
		return nil, fmt.Errorf("%w: %d records but %d snapshots", ErrInvalidInputShape, len(records), len(snapshots))
	}

	c := &Corpus{
		Records: make([]dive.Record, len(records)),
		Sources: make([]string, len(records)),
		Devices: make([][]string, len(records)),
		Sensors: make([][]string, len(records)),
	}
	for i, r := range records {
		if snapshots != nil {
			r = r.WithSnapshot(snapshots[i])
		} else {
			r = r.Clone()
		}
		c.Records[i] = r
		c.Sources[i] = r.SourceName
		c.Devices[i] = r.Devices
		c.Sensors[i] = r.Sensors
	}
	return c, nil
}

// Order returns a new corpus sorted by dive and restricted to the dives
// whose start time lies in period (nil keeps every dive). The sort is
// stable, so dives with equal keys keep their input order. The sort key is
// computed over the whole corpus before filtering, so filtering and sorting
// commute.
func Order(c *Corpus, period *Period, ordering Ordering) *Corpus {
	n := c.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	switch ordering {
	case OrderRank:
		ranks := diveRanks(c.Records)
		sort.SliceStable(idx, func(a, b int) bool {
			return ranks[idx[a]] < ranks[idx[b]]
		})
	default:
		sort.SliceStable(idx, func(a, b int) bool {
			ha, hb := c.Records[idx[a]].Header, c.Records[idx[b]].Header
			if ha.MissionNumber != hb.MissionNumber {
				return ha.MissionNumber < hb.MissionNumber
			}
			return ha.DiveNumber < hb.DiveNumber
		})
	}

	out := &Corpus{}
	for _, i := range idx {
		r := c.Records[i]
		if period != nil && !period.Contains(r.StartTimeSeconds) {
			continue
		}
		out.Records = append(out.Records, r)
		out.Sources = append(out.Sources, c.Sources[i])
		out.Devices = append(out.Devices, c.Devices[i])
		out.Sensors = append(out.Sensors, c.Sensors[i])
	}
	return out
}

// diveRanks computes the legacy composite sort key used by older
// consolidated files. The dive span is taken over the whole corpus so every
// mission gets a disjoint rank range.
func diveRanks(records []dive.Record) []int {
	ranks := make([]int, len(records))
	if len(records) == 0 {
		return ranks
	}
	minDive, maxDive := math.MaxInt, math.MinInt
	minMission := math.MaxInt
	for _, r := range records {
		minDive = min(minDive, r.Header.DiveNumber)
		maxDive = max(maxDive, r.Header.DiveNumber)
		minMission = min(minMission, r.Header.MissionNumber)
	}
	span := maxDive - minDive + 1
	for i, r := range records {
		ranks[i] = (r.Header.DiveNumber - minDive) + (r.Header.MissionNumber-minMission)*span
	}
	return ranks
}

// missionStart returns the earliest dive start time, or NaN for no dives.
func missionStart(records []dive.Record) float64 {
	if len(records) == 0 {
		return math.NaN()
	}
	starts := make([]float64, len(records))
	for i, r := range records {
		starts[i] = r.StartTimeSeconds
	}
	return slices.Min(starts)
}
