package db

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ridership.report/internal/dataset"
)

// Run is the persisted summary of one pipeline invocation.
type Run struct {
	RunID      string
	Mode       string
	StartedAt  int64 // unix millis
	FinishedAt int64 // unix millis, 0 while in flight

	FilesProcessed   int
	FilesSkipped     int
	RecordsProcessed int
	RecordsSkipped   int
	MalformedStatus  int
	GroundTruthHits  int
	GatedDowngrades  int
	DuplicateTruth   int

	LabelNone      int
	LabelBoarding  int
	LabelAlighting int
}

// SampleStore persists the labeled base table, the extended acceleration
// table and the per-run summaries.
type SampleStore struct {
	db *DB
}

// NewSampleStore creates a SampleStore backed by the given database.
func NewSampleStore(db *DB) *SampleStore {
	return &SampleStore{db: db}
}

// BeginRun inserts a new in-flight run row and returns its id.
func (s *SampleStore) BeginRun(mode string) (string, error) {
	runID := uuid.New().String()
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (run_id, mode, started_at) VALUES (?, ?, ?)`,
			runID, mode, time.Now().UnixMilli(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// FinishRun records the final counters of a run.
func (s *SampleStore) FinishRun(run *Run) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			UPDATE runs SET
				finished_at = ?, files_processed = ?, files_skipped = ?,
				records_processed = ?, records_skipped = ?, malformed_status = ?,
				ground_truth_hits = ?, gated_downgrades = ?, duplicate_truth = ?,
				label_none = ?, label_boarding = ?, label_alighting = ?
			WHERE run_id = ?`,
			time.Now().UnixMilli(), run.FilesProcessed, run.FilesSkipped,
			run.RecordsProcessed, run.RecordsSkipped, run.MalformedStatus,
			run.GroundTruthHits, run.GatedDowngrades, run.DuplicateTruth,
			run.LabelNone, run.LabelBoarding, run.LabelAlighting,
			run.RunID,
		)
		return err
	})
}

// GetRun loads one run summary by id.
func (s *SampleStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, mode, started_at, COALESCE(finished_at, 0),
		       files_processed, files_skipped, records_processed, records_skipped,
		       malformed_status, ground_truth_hits, gated_downgrades, duplicate_truth,
		       label_none, label_boarding, label_alighting
		FROM runs WHERE run_id = ?`, runID)

	var r Run
	err := row.Scan(
		&r.RunID, &r.Mode, &r.StartedAt, &r.FinishedAt,
		&r.FilesProcessed, &r.FilesSkipped, &r.RecordsProcessed, &r.RecordsSkipped,
		&r.MalformedStatus, &r.GroundTruthHits, &r.GatedDowngrades, &r.DuplicateTruth,
		&r.LabelNone, &r.LabelBoarding, &r.LabelAlighting,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// InsertBaseRows persists base rows in one transaction. split tags each row
// as 'train' or 'test'; pass "" for the unsplit full table.
func (s *SampleStore) InsertBaseRows(runID, split string, rows []dataset.BaseRow) error {
	if len(rows) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO labeled_samples (
				run_id, vehicle_id, record_time, epoch_millis,
				speed, lat, lon, altitude, heading,
				accel_x_mean, accel_x_max, accel_x_min, accel_x_std, accel_x_median,
				accel_y_mean, accel_y_max, accel_y_min, accel_y_std, accel_y_median,
				accel_z_mean, accel_z_max, accel_z_min, accel_z_std, accel_z_median,
				gyro_mean, gyro_max, gyro_min, gyro_std, gyro_median,
				blinker, brake, label, split
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			          ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			          ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			r := &rows[i]
			var recordTime interface{}
			if !r.RecordTime.IsZero() {
				recordTime = r.RecordTime.Format("2006-01-02 15:04:05")
			}
			args := []interface{}{
				runID, r.VehicleID, recordTime, r.EpochMillis,
				nullIfNaN(r.Speed), nullIfNaN(r.Lat), nullIfNaN(r.Lon),
				nullIfNaN(r.Altitude), nullIfNaN(r.Heading),
			}
			for _, sensor := range []string{"accel_x", "accel_y", "accel_z", "gyro"} {
				for _, v := range r.Summaries[sensor].Values() {
					args = append(args, nullIfNaN(v))
				}
			}
			args = append(args, r.States["blinker"], r.States["brake"], int(r.Label), split)

			if _, err := stmt.Exec(args...); err != nil {
				return fmt.Errorf("insert base row (%s, %d): %w", r.VehicleID, r.EpochMillis, err)
			}
		}
		return tx.Commit()
	})
}

// InsertAccelRows persists extended acceleration rows in one transaction.
func (s *SampleStore) InsertAccelRows(runID string, rows []dataset.AccelRow) error {
	if len(rows) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO accel_samples (
				run_id, vehicle_id, epoch_millis, sample_index,
				accel_x, accel_y, accel_z, gyro
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			_, err := stmt.Exec(
				runID, r.VehicleID, r.EpochMillis, r.SampleIndex,
				nullIfNaN(r.AccelX), nullIfNaN(r.AccelY), nullIfNaN(r.AccelZ), nullIfNaN(r.Gyro),
			)
			if err != nil {
				return fmt.Errorf("insert accel row (%s, %d, %d): %w", r.VehicleID, r.EpochMillis, r.SampleIndex, err)
			}
		}
		return tx.Commit()
	})
}

// CountSamples returns the number of labeled samples stored for a run and
// split. Pass "" for the full table.
func (s *SampleStore) CountSamples(runID, split string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM labeled_samples WHERE run_id = ? AND split = ?`,
		runID, split,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// nullIfNaN maps the missing marker to SQL NULL so "no data" never turns into
// a numeric zero in the stored tables.
func nullIfNaN(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
