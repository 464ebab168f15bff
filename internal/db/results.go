package db

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/evacsim/internal/sim"
)

// ErrNotFound is returned when a result ID is not in the history.
var ErrNotFound = errors.New("result not found")

// DefaultListLimit caps ListResults when no limit is given.
const DefaultListLimit = 50

// ResultRecord is a stored run plus its user-supplied label.
type ResultRecord struct {
	Label string `json:"label"`
	sim.Result
}

// ResultSummary is one row of the history listing.
type ResultSummary struct {
	ID             uuid.UUID `json:"id"`
	Label          string    `json:"label"`
	Timestamp      time.Time `json:"timestamp"`
	EvacuationTime float64   `json:"evacuationTime"`
	PeopleCount    int       `json:"peopleCount"`
	EvacuatedCount int       `json:"evacuatedCount"`
	TimedOut       bool      `json:"timedOut"`
}

func encodeGrid(grid [][][]float64) ([]byte, error) {
	if grid == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(grid); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGrid(blob []byte) ([][][]float64, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	var grid [][][]float64
	if err := json.NewDecoder(gz).Decode(&grid); err != nil {
		return nil, err
	}
	return grid, nil
}

// marshalList encodes a slice as JSON, writing [] for nil.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// InsertResult stores a finished run.
func (db *DB) InsertResult(res *sim.Result, label string) error {
	if res == nil {
		return errors.New("nil result")
	}
	bottlenecks, err := marshalList(res.Bottlenecks)
	if err != nil {
		return fmt.Errorf("encode bottlenecks: %w", err)
	}
	exits, err := marshalList(res.ExitStats)
	if err != nil {
		return fmt.Errorf("encode exit stats: %w", err)
	}
	doors, err := marshalList(res.DoorStats)
	if err != nil {
		return fmt.Errorf("encode door stats: %w", err)
	}
	outcomes, err := marshalList(res.Outcomes)
	if err != nil {
		return fmt.Errorf("encode outcomes: %w", err)
	}
	heat, err := encodeGrid(res.Heatmap)
	if err != nil {
		return fmt.Errorf("encode heatmap: %w", err)
	}
	peak, err := encodeGrid(res.PeakHeatmap)
	if err != nil {
		return fmt.Errorf("encode peak heatmap: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO simulation_results (
			result_id, created_unix_nanos, label, evacuation_time,
			people_count, floor_count, evacuated_count, assembled_count,
			stranded_count, timed_out, ticks,
			bottlenecks_json, exit_stats_json, door_stats_json, outcomes_json,
			heatmap_gz, peak_heatmap_gz
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.Timestamp.UnixNano(), label, res.EvacuationTime,
		res.PeopleCount, res.FloorCount, res.EvacuatedCount, res.AssembledCount,
		res.StrandedCount, res.TimedOut, res.Ticks,
		bottlenecks, exits, doors, outcomes,
		heat, peak,
	)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", res.ID, err)
	}
	return nil
}

// ListResults returns up to limit stored runs, newest first. A non-positive
// limit uses DefaultListLimit.
func (db *DB) ListResults(limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query(`
		SELECT result_id, label, created_unix_nanos, evacuation_time,
		       people_count, evacuated_count, timed_out
		FROM simulation_results
		ORDER BY created_unix_nanos DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := []ResultSummary{}
	for rows.Next() {
		var (
			s     ResultSummary
			id    string
			nanos int64
		)
		if err := rows.Scan(&id, &s.Label, &nanos, &s.EvacuationTime, &s.PeopleCount, &s.EvacuatedCount, &s.TimedOut); err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("stored result id %q: %w", id, err)
		}
		s.Timestamp = time.Unix(0, nanos).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetResult loads one stored run, returning ErrNotFound for unknown IDs.
func (db *DB) GetResult(id uuid.UUID) (*ResultRecord, error) {
	var (
		rec                                 ResultRecord
		nanos                               int64
		bottlenecks, exits, doors, outcomes string
		heat, peak                          []byte
	)
	err := db.QueryRow(`
		SELECT label, created_unix_nanos, evacuation_time,
		       people_count, floor_count, evacuated_count, assembled_count,
		       stranded_count, timed_out, ticks,
		       bottlenecks_json, exit_stats_json, door_stats_json, outcomes_json,
		       heatmap_gz, peak_heatmap_gz
		FROM simulation_results WHERE result_id = ?`, id.String()).Scan(
		&rec.Label, &nanos, &rec.EvacuationTime,
		&rec.PeopleCount, &rec.FloorCount, &rec.EvacuatedCount, &rec.AssembledCount,
		&rec.StrandedCount, &rec.TimedOut, &rec.Ticks,
		&bottlenecks, &exits, &doors, &outcomes,
		&heat, &peak,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}

	rec.ID = id
	rec.Timestamp = time.Unix(0, nanos).UTC()
	for _, f := range []struct {
		name string
		src  string
		dst  any
	}{
		{"bottlenecks", bottlenecks, &rec.Bottlenecks},
		{"exit stats", exits, &rec.ExitStats},
		{"door stats", doors, &rec.DoorStats},
		{"outcomes", outcomes, &rec.Outcomes},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("decode %s of %s: %w", f.name, id, err)
		}
	}
	if rec.Heatmap, err = decodeGrid(heat); err != nil {
		return nil, fmt.Errorf("decode heatmap of %s: %w", id, err)
	}
	if rec.PeakHeatmap, err = decodeGrid(peak); err != nil {
		return nil, fmt.Errorf("decode peak heatmap of %s: %w", id, err)
	}
	return &rec, nil
}

// DeleteResult removes a stored run, returning ErrNotFound for unknown IDs.
func (db *DB) DeleteResult(id uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM simulation_results WHERE result_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete result %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
