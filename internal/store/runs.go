package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/timeutil"
)

// RunSummary describes one stored merge run.
type RunSummary struct {
	ID        string    `json:"run_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	DiveCount int       `json:"dive_count"`
	// MissionStart is the earliest dive start in epoch seconds, nil for an
	// empty run.
	MissionStart *float64 `json:"mission_start"`
}

// Run is a stored run with its dives and field names.
type Run struct {
	RunSummary
	Headers   []dive.Header       `json:"headers"`
	Sources   []string            `json:"sources"`
	Scalars   []string            `json:"scalars"`
	Compounds map[string][]string `json:"compounds"`
	Blocks    map[string][]string `json:"blocks"`
}

// SaveDataset stores ds under a new run id in a single transaction and
// returns the id.
func (s *Store) SaveDataset(ds *merge.Dataset, label string) (string, error) {
	runID := uuid.New().String()
	created := timeutil.ToEpoch(s.clock.Now())

	tx, err := s.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var missionStart any
	if !math.IsNaN(ds.MissionStart) {
		missionStart = ds.MissionStart
	}
	if _, err := tx.Exec(
		`INSERT INTO merge_runs (run_id, label, created_at, dive_count, mission_start) VALUES (?, ?, ?, ?, ?)`,
		runID, label, created, ds.Len(), missionStart,
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, h := range ds.Headers {
		if _, err := tx.Exec(
			`INSERT INTO merge_dives (run_id, dive_index, version, glider_id, mission_number, dive_number, start_time, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, h.Version, h.GliderID, h.MissionNumber, h.DiveNumber, h.StartTime, ds.Sources[i],
		); err != nil {
			return "", fmt.Errorf("failed to insert dive %d: %w", i, err)
		}
	}

	scalarStmt, err := tx.Prepare(
		`INSERT INTO merge_scalars (run_id, field, field_index, kind, dive_index, num, text) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer scalarStmt.Close()
	for fi, name := range ds.Scalars.Names {
		col := ds.Scalars.ByName[name]
		for i := 0; i < col.Len(); i++ {
			num, text := cell(col.At(i))
			if _, err := scalarStmt.Exec(runID, name, fi, col.Kind.String(), i, num, text); err != nil {
				return "", fmt.Errorf("failed to insert scalar %s: %w", name, err)
			}
		}
	}

	compoundStmt, err := tx.Prepare(
		`INSERT INTO merge_compounds (run_id, field, field_index, member, member_index, kind, dive_index, num, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer compoundStmt.Close()
	for fi, name := range ds.Compounds.Names {
		t := ds.Compounds.ByName[name]
		for mi, member := range t.Members {
			col := t.Columns[mi]
			for i := 0; i < t.Rows(); i++ {
				num, text := cell(col.At(i))
				if _, err := compoundStmt.Exec(runID, name, fi, member, mi, col.Kind.String(), i, num, text); err != nil {
					return "", fmt.Errorf("failed to insert compound %s: %w", name, err)
				}
			}
		}
	}

	rowStmt, err := tx.Prepare(
		`INSERT INTO merge_block_rows (run_id, block, member, member_index, kind, row_index, num, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer rowStmt.Close()
	for bi, name := range ds.Blocks.Names {
		t := ds.Blocks.ByName[name]
		members, err := json.Marshal(t.Members)
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(
			`INSERT INTO merge_blocks (run_id, block, block_index, members, row_count, time_column) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, name, bi, string(members), t.Rows(), t.TimeColumn,
		); err != nil {
			return "", fmt.Errorf("failed to insert block %s: %w", name, err)
		}
		for mi, member := range t.Members {
			col := t.Columns[mi]
			for i := 0; i < t.Rows(); i++ {
				num, text := cell(col.At(i))
				if _, err := rowStmt.Exec(runID, name, member, mi, col.Kind.String(), i, num, text); err != nil {
					return "", fmt.Errorf("failed to insert block %s row %d: %w", name, i, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	monitoring.Logf("store: saved run %s (%d dives, %d scalars, %d compounds, %d blocks)",
		runID, ds.Len(), ds.Scalars.Len(), ds.Compounds.Len(), ds.Blocks.Len())
	return runID, nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	rows, err := s.Query(
		`SELECT run_id, label, created_at, dive_count, mission_start FROM merge_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) GetRun(runID string) (*Run, error) {
	summary, err := scanSummary(s.QueryRow(
		`SELECT run_id, label, created_at, dive_count, mission_start FROM merge_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	run := &Run{
		RunSummary: summary,
		Headers:    []dive.Header{},
		Sources:    []string{},
		Scalars:    []string{},
		Compounds:  map[string][]string{},
		Blocks:     map[string][]string{},
	}

	rows, err := s.Query(
		`SELECT version, glider_id, mission_number, dive_number, start_time, source
		 FROM merge_dives WHERE run_id = ? ORDER BY dive_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dives: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h dive.Header
		var source string
		if err := rows.Scan(&h.Version, &h.GliderID, &h.MissionNumber, &h.DiveNumber, &h.StartTime, &source); err != nil {
			return nil, err
		}
		run.Headers = append(run.Headers, h)
		run.Sources = append(run.Sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if run.Scalars, err = s.queryStrings(
		`SELECT field FROM merge_scalars WHERE run_id = ? GROUP BY field ORDER BY MIN(field_index)`, runID); err != nil {
		return nil, err
	}

	crows, err := s.Query(
		`SELECT field, member FROM merge_compounds WHERE run_id = ?
		 GROUP BY field, member ORDER BY MIN(field_index), MIN(member_index)`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query compounds: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var field, member string
		if err := crows.Scan(&field, &member); err != nil {
			return nil, err
		}
		run.Compounds[field] = append(run.Compounds[field], member)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}

	brows, err := s.Query(`SELECT block, members FROM merge_blocks WHERE run_id = ? ORDER BY block_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer brows.Close()
	for brows.Next() {
		var block, members string
		if err := brows.Scan(&block, &members); err != nil {
			return nil, err
		}
		var list []string
		if err := json.Unmarshal([]byte(members), &list); err != nil {
			return nil, fmt.Errorf("block %s: corrupt member list: %w", block, err)
		}
		run.Blocks[block] = list
	}
	return run, brows.Err()
}

// DeleteRun removes a run and all of its values.
func (s *Store) DeleteRun(runID string) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"merge_block_rows", "merge_blocks", "merge_compounds", "merge_scalars", "merge_dives"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	res, err := tx.Exec(`DELETE FROM merge_runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// ScalarColumn rebuilds one aligned scalar column of a run.
func (s *Store) ScalarColumn(runID, field string) (*merge.Column, error) {
	n, err := s.diveCount(runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Query(
		`SELECT kind, dive_index, num, text FROM merge_scalars WHERE run_id = ? AND field = ? ORDER BY dive_index`,
		runID, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query scalar: %w", err)
	}
	defer rows.Close()

	var col *merge.Column
	for rows.Next() {
		var kind string
		var i int
		var num sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&kind, &i, &num, &text); err != nil {
			return nil, err
		}
		if col == nil {
			col = merge.NewColumn(parseKind(kind), n)
		}
		if i >= 0 && i < n {
			col.Set(i, value(col.Kind, num, text))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if col == nil {
		return nil, fmt.Errorf("%w: scalar %s", ErrFieldNotFound, field)
	}
	return col, nil
}

// CompoundTable rebuilds the dives x members table of a compound field.
func (s *Store) CompoundTable(runID, field string) (*merge.Table, error) {
	n, err := s.diveCount(runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Query(
		`SELECT member, member_index, kind, dive_index, num, text FROM merge_compounds
		 WHERE run_id = ? AND field = ? ORDER BY member_index, dive_index`, runID, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query compound: %w", err)
	}
	defer rows.Close()

	cells, members, kinds, err := scanCells(rows)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: compound %s", ErrFieldNotFound, field)
	}
	return buildTable(members, kinds, n, cells), nil
}

// BlockTable rebuilds the concatenated event rows of a block.
func (s *Store) BlockTable(runID, block string) (*merge.Table, error) {
	if _, err := s.diveCount(runID); err != nil {
		return nil, err
	}
	var membersJSON, timeColumn string
	var rowCount int
	err := s.QueryRow(
		`SELECT members, row_count, time_column FROM merge_blocks WHERE run_id = ? AND block = ?`,
		runID, block).Scan(&membersJSON, &rowCount, &timeColumn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: block %s", ErrFieldNotFound, block)
	}
	if err != nil {
		return nil, err
	}
	var members []string
	if err := json.Unmarshal([]byte(membersJSON), &members); err != nil {
		return nil, fmt.Errorf("block %s: corrupt member list: %w", block, err)
	}

	rows, err := s.Query(
		`SELECT member, member_index, kind, row_index, num, text FROM merge_block_rows
		 WHERE run_id = ? AND block = ? ORDER BY member_index, row_index`, runID, block)
	if err != nil {
		return nil, fmt.Errorf("failed to query block rows: %w", err)
	}
	defer rows.Close()

	cells, _, scanned, err := scanCells(rows)
	if err != nil {
		return nil, err
	}
	kinds := make([]dive.Kind, len(members))
	for i := range kinds {
		if i < len(scanned) {
			kinds[i] = scanned[i]
		}
	}
	t := buildTable(members, kinds, rowCount, cells)
	t.TimeColumn = timeColumn
	return t, nil
}

type storedCell struct {
	member int
	row    int
	num    sql.NullFloat64
	text   sql.NullString
}

func scanCells(rows *sql.Rows) ([]storedCell, []string, []dive.Kind, error) {
	var cells []storedCell
	var members []string
	var kinds []dive.Kind
	for rows.Next() {
		var member, kind string
		var c storedCell
		if err := rows.Scan(&member, &c.member, &kind, &c.row, &c.num, &c.text); err != nil {
			return nil, nil, nil, err
		}
		if c.member == len(members) {
			members = append(members, member)
			kinds = append(kinds, parseKind(kind))
		}
		cells = append(cells, c)
	}
	return cells, members, kinds, rows.Err()
}

func buildTable(members []string, kinds []dive.Kind, n int, cells []storedCell) *merge.Table {
	t := merge.NewTable(members, kinds, n)
	for _, c := range cells {
		if c.member < len(t.Columns) && c.row >= 0 && c.row < n {
			col := t.Columns[c.member]
			col.Set(c.row, value(col.Kind, c.num, c.text))
		}
	}
	return t
}

func (s *Store) diveCount(runID string) (int, error) {
	var n int
	err := s.QueryRow(`SELECT dive_count FROM merge_runs WHERE run_id = ?`, runID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return n, err
}

func (s *Store) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var r RunSummary
	var created float64
	var start sql.NullFloat64
	if err := row.Scan(&r.ID, &r.Label, &created, &r.DiveCount, &start); err != nil {
		return RunSummary{}, err
	}
	r.CreatedAt = timeutil.FromEpoch(created).UTC()
	if start.Valid {
		v := start.Float64
		r.MissionStart = &v
	}
	return r, nil
}

// cell maps a value to its nullable columns; sentinels become NULL.
func cell(v dive.Value) (num, text any) {
	if v.IsSentinel() {
		return nil, nil
	}
	if v.Kind == dive.KindText {
		return nil, v.Text
	}
	return v.Num, nil
}

func value(kind dive.Kind, num sql.NullFloat64, text sql.NullString) dive.Value {
	switch {
	case kind == dive.KindText && text.Valid:
		return dive.Text(text.String)
	case kind == dive.KindNumber && num.Valid:
		return dive.Number(num.Float64)
	}
	return dive.Sentinel(kind)
}

func parseKind(s string) dive.Kind {
	if s == dive.KindText.String() {
		return dive.KindText
	}
	return dive.KindNumber
}
