package label

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/ridership.report/internal/monitoring"
)

// groundTruthKey joins a vehicle to one millisecond instant.
type groundTruthKey struct {
	VehicleID   string
	EpochMillis int64
}

// GroundTruthIndex is the externally supplied change-flag table: an immutable
// lookup from (vehicle id, millisecond timestamp) to an authoritative label.
// It is built once before any per-vehicle processing and shared read-only, so
// parallel vehicle shards need no locking around it.
type GroundTruthIndex struct {
	entries map[groundTruthKey]Label

	// Duplicates counts keys that appeared more than once in the source
	// table. In non-strict mode the last occurrence wins.
	Duplicates int
}

// LoadGroundTruth reads the change-flag CSV at path. Expected columns:
// vehicle_id, epoch_millis, label (header row required). A duplicate
// (vehicle, millisecond) key is a structural defect in the external data:
// fatal in strict mode, otherwise resolved last-write-wins and counted.
func LoadGroundTruth(path string, strict bool) (*GroundTruthIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ground truth table: %w", err)
	}
	defer f.Close()
	return ReadGroundTruth(f, strict)
}

// ReadGroundTruth parses a change-flag table from r. See LoadGroundTruth.
func ReadGroundTruth(r io.Reader, strict bool) (*GroundTruthIndex, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read ground truth header: %w", err)
	}
	if header[0] != "vehicle_id" || header[1] != "epoch_millis" || header[2] != "label" {
		return nil, fmt.Errorf("unexpected ground truth header %v, want [vehicle_id epoch_millis label]", header)
	}

	idx := &GroundTruthIndex{entries: make(map[groundTruthKey]Label)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ground truth row: %w", err)
		}
		line++

		millis, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ground truth line %d: bad epoch_millis %q: %w", line, rec[1], err)
		}
		lv, err := strconv.Atoi(rec[2])
		if err != nil || lv < 0 || lv > 2 {
			return nil, fmt.Errorf("ground truth line %d: label %q outside {0,1,2}", line, rec[2])
		}

		key := groundTruthKey{VehicleID: rec[0], EpochMillis: millis}
		if _, dup := idx.entries[key]; dup {
			if strict {
				return nil, fmt.Errorf("ground truth line %d: duplicate key (%s, %d)", line, key.VehicleID, key.EpochMillis)
			}
			idx.Duplicates++
			monitoring.Logf("ground truth: duplicate key (%s, %d), keeping last value", key.VehicleID, key.EpochMillis)
		}
		idx.entries[key] = Label(lv)
	}
	return idx, nil
}

// Lookup returns the authoritative label for a snapshot, if one exists.
func (idx *GroundTruthIndex) Lookup(vehicleID string, epochMillis int64) (Label, bool) {
	if idx == nil {
		return LabelNone, false
	}
	l, ok := idx.entries[groundTruthKey{VehicleID: vehicleID, EpochMillis: epochMillis}]
	return l, ok
}

// Len returns the number of distinct keys in the index.
func (idx *GroundTruthIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
