package merge

import (
	"github.com/banshee-data/glider-logs/internal/dive"
)

// mergeBlocks concatenates the event rows of every block across dives in
// sorted order. If the block has an elapsed-time column, each dive's rows
// are shifted by that dive's start time minus the start time of the first
// dive, putting every row on one mission-relative axis. Dives with no rows
// contribute nothing.
func mergeBlocks(c *Corpus, s *Schema, timeColumns map[string]string) Fields[*Table] {
	out := newFields[*Table]()
	var origin float64
	if c.Len() > 0 {
		origin = c.Records[0].StartTimeSeconds
	}

	for _, name := range s.Blocks.Names {
		members := s.Blocks.ByName[name]
		unified := indexOf(members)
		timeCol := -1
		if tc := timeColumns[name]; tc != "" {
			if i, ok := unified[tc]; ok {
				timeCol = i
			}
		}

		// Pass 1: total rows, record-local column positions and kinds.
		total := 0
		local := make([][]int, c.Len())
		kinds := make([]dive.Kind, len(members))
		kindSet := make([]bool, len(members))
		if timeCol >= 0 {
			kinds[timeCol] = dive.KindNumber
			kindSet[timeCol] = true
		}
		for i, r := range c.Records {
			t := r.Blocks[name]
			if t.Len() == 0 {
				continue
			}
			total += t.Len()
			local[i] = make([]int, len(t.Columns))
			for j, m := range t.Columns {
				col, ok := unified[m]
				if !ok {
					local[i][j] = -1
					continue
				}
				local[i][j] = col
				if kindSet[col] {
					continue
				}
				for _, row := range t.Rows {
					if j < len(row) {
						kinds[col] = row[j].Kind
						kindSet[col] = true
						break
					}
				}
			}
		}

		// Pass 2: copy rows, rebasing the time column.
		merged := NewTable(members, kinds, total)
		if timeCol >= 0 {
			merged.TimeColumn = members[timeCol]
		}
		at := 0
		for i, r := range c.Records {
			t := r.Blocks[name]
			if t.Len() == 0 {
				continue
			}
			offset := r.StartTimeSeconds - origin
			for _, row := range t.Rows {
				for j, col := range local[i] {
					if col < 0 || j >= len(row) {
						continue
					}
					v := row[j]
					if col == timeCol {
						v = v.As(dive.KindNumber)
						v.Num += offset
					}
					setLogged(merged.Columns[col], at, v, dive.MemberName(name, members[col]))
				}
				at++
			}
		}
		out.Add(name, merged)
	}
	return out
}
