package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// MaxSamples is the nominal length of the high-frequency sample arrays. The
// device emits up to 100 samples per snapshot; anything beyond that is
// truncated.
const MaxSamples = 100

// RecordTimeLayout is the calendar timestamp format used by the device
// (YYYYMMDDHHmmss).
const RecordTimeLayout = "20060102150405"

// SensorNames lists the numeric high-frequency arrays carried by a snapshot,
// in canonical column order.
var SensorNames = []string{"accel_x", "accel_y", "accel_z", "gyro"}

// StateNames lists the categorical vehicle-state arrays, in canonical column
// order.
var StateNames = []string{"blinker", "brake"}

// Snapshot is one normalized telemetry record for one vehicle at one instant.
// EpochMillis is the join key of record; RecordTime is kept for human-readable
// output only.
type Snapshot struct {
	VehicleID   string
	RecordTime  time.Time
	EpochMillis int64

	Lat      float64
	Lon      float64
	Altitude float64
	Speed    float64
	Heading  float64

	// StatusCode is the raw 4-character seat/door/brake state field. It is
	// carried verbatim; validation happens in the labeler.
	StatusCode string

	// SensorArrays maps sensor name to its numeric samples. Entries that
	// failed numeric coercion hold NaN, never zero, so sample positions are
	// preserved for the raw acceleration table while the aggregator can
	// still exclude them.
	SensorArrays map[string][]float64

	// StateArrays maps state name to its categorical samples.
	StateArrays map[string][]string
}

// snapshotFile is the raw JSON envelope: one file holds the vehicle identity
// plus a batch of records.
type snapshotFile struct {
	VehicleID  string      `json:"vehicle_id"`
	RecordTime string      `json:"record_time"`
	Data       []rawRecord `json:"data"`
}

type rawRecord struct {
	// Per-record identity overrides the file envelope when present.
	VehicleID  string `json:"vehicle_id"`
	RecordTime string `json:"record_time"`

	EpochMillis json.RawMessage `json:"epoch_millis"`
	GPS         struct {
		Lat      json.RawMessage `json:"lat"`
		Lon      json.RawMessage `json:"lon"`
		Altitude json.RawMessage `json:"altitude"`
	} `json:"gps"`
	Speed      json.RawMessage `json:"speed"`
	Heading    json.RawMessage `json:"heading"`
	StatusCode string          `json:"status_code"`

	SensorArrays       map[string]json.RawMessage `json:"sensor_arrays"`
	VehicleStateArrays map[string]json.RawMessage `json:"vehicle_state_arrays"`
}

// ParseResult reports what happened while decoding one snapshot file.
type ParseResult struct {
	Snapshots []Snapshot
	// Skipped counts records missing one of the required fields
	// (vehicle_id, epoch_millis, status_code).
	Skipped int
}

// ParseSnapshots decodes one raw snapshot file. Malformed records are skipped
// and counted, never fatal; only an undecodable envelope returns an error.
func ParseSnapshots(data []byte) (ParseResult, error) {
	var res ParseResult

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return res, fmt.Errorf("decode snapshot file: %w", err)
	}

	for _, rec := range file.Data {
		snap, ok := normalizeRecord(&file, &rec)
		if !ok {
			res.Skipped++
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}

// normalizeRecord converts one raw record into a typed Snapshot. The second
// return value is false when a required field is absent.
func normalizeRecord(file *snapshotFile, rec *rawRecord) (Snapshot, bool) {
	vehicleID := rec.VehicleID
	if vehicleID == "" {
		vehicleID = file.VehicleID
	}
	millis, okMillis := coerceInt64(rec.EpochMillis)
	if vehicleID == "" || !okMillis || rec.StatusCode == "" {
		return Snapshot{}, false
	}

	recordTime := rec.RecordTime
	if recordTime == "" {
		recordTime = file.RecordTime
	}
	// Calendar time is display-only; an unparsable value degrades to the
	// zero time rather than invalidating the record.
	ts, err := time.Parse(RecordTimeLayout, recordTime)
	if err != nil {
		ts = time.Time{}
	}

	snap := Snapshot{
		VehicleID:    vehicleID,
		RecordTime:   ts,
		EpochMillis:  millis,
		Lat:          coerceFloat(rec.GPS.Lat),
		Lon:          coerceFloat(rec.GPS.Lon),
		Altitude:     coerceFloat(rec.GPS.Altitude),
		Speed:        coerceFloat(rec.Speed),
		Heading:      coerceFloat(rec.Heading),
		StatusCode:   rec.StatusCode,
		SensorArrays: make(map[string][]float64, len(SensorNames)),
		StateArrays:  make(map[string][]string, len(StateNames)),
	}

	for _, name := range SensorNames {
		snap.SensorArrays[name] = decodeNumericArray(rec.SensorArrays[name])
	}
	for _, name := range StateNames {
		snap.StateArrays[name] = decodeCategoricalArray(rec.VehicleStateArrays[name])
	}
	return snap, true
}

// decodeNumericArray accepts either a JSON array or a string containing an
// array literal (the device wraps arrays in strings). Entries that fail
// numeric coercion become NaN so sample indices stay aligned across arrays.
func decodeNumericArray(raw json.RawMessage) []float64 {
	elems, ok := arrayElements(raw)
	if !ok {
		return nil
	}
	if len(elems) > MaxSamples {
		elems = elems[:MaxSamples]
	}
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		v, ok := coerceElemFloat(e)
		if !ok || math.IsInf(v, 0) {
			v = math.NaN()
		}
		out = append(out, v)
	}
	return out
}

// decodeCategoricalArray decodes a state array into string tokens. Numbers
// are kept in their canonical decimal form so "1", 1 and 1.0 vote together.
func decodeCategoricalArray(raw json.RawMessage) []string {
	elems, ok := arrayElements(raw)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			if v, ok := coerceElemFloat(e); ok {
				s = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				continue
			}
		}
		out = append(out, s)
		if len(out) == MaxSamples {
			break
		}
	}
	return out
}

// arrayElements unwraps raw into the JSON elements of an array, tolerating
// one level of string wrapping.
func arrayElements(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err == nil {
		return elems, true
	}
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(wrapped), &elems); err != nil {
		return nil, false
	}
	return elems, true
}

// coerceElemFloat parses a JSON element as a float, accepting both numbers
// and numeric strings.
func coerceElemFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// coerceFloat is coerceElemFloat with a NaN fallback, used for the direct
// scalar fields where "absent" must stay distinguishable from zero.
func coerceFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	v, ok := coerceElemFloat(raw)
	if !ok {
		return math.NaN()
	}
	return v
}

func coerceInt64(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortChronological orders snapshots by EpochMillis. The sort is stable so
// re-running over the same input produces identical output; source order is
// never trusted.
func SortChronological(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].EpochMillis < snaps[j].EpochMillis
	})
}

// GroupByVehicle splits snapshots into per-vehicle sequences and returns the
// vehicle ids in sorted order for deterministic iteration.
func GroupByVehicle(snaps []Snapshot) (map[string][]Snapshot, []string) {
	groups := make(map[string][]Snapshot)
	for _, s := range snaps {
		groups[s.VehicleID] = append(groups[s.VehicleID], s)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		SortChronological(groups[id])
	}
	return groups, ids
}
