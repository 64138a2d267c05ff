package dataset

import (
	"math"
	"time"

	"github.com/banshee-data/ridership.report/internal/label"
	"github.com/banshee-data/ridership.report/internal/telemetry"
)

// BaseRow is one labeled sample of the aggregated table: snapshot identity,
// direct fields, the five-statistic summaries of every sensor array, the
// majority-voted vehicle state, and the resolved label.
type BaseRow struct {
	VehicleID   string
	RecordTime  time.Time
	EpochMillis int64

	Speed    float64
	Lat      float64
	Lon      float64
	Altitude float64
	Heading  float64

	// Summaries is keyed by telemetry.SensorNames.
	Summaries map[string]telemetry.Summary

	// States is keyed by telemetry.StateNames.
	States map[string]string

	Label label.Label
}

// AccelRow is one raw high-frequency sample of the extended acceleration
// table. (VehicleID, EpochMillis) joins back to the base table; SampleIndex
// orders samples within a snapshot. Sensor values are NaN where the source
// array was shorter or the entry failed coercion.
type AccelRow struct {
	VehicleID   string
	EpochMillis int64
	SampleIndex int

	AccelX float64
	AccelY float64
	AccelZ float64
	Gyro   float64
}

// Assembler merges parsed snapshots, aggregated features and resolved labels
// into output rows. With Extended set it additionally emits the raw
// acceleration rows.
type Assembler struct {
	Extended bool
}

// Assemble builds the row(s) for one snapshot. The accel slice is nil outside
// extended mode and for snapshots with no sensor samples at all: missing
// indices are never padded.
func (a *Assembler) Assemble(s telemetry.Snapshot, resolved label.Label) (BaseRow, []AccelRow) {
	row := BaseRow{
		VehicleID:   s.VehicleID,
		RecordTime:  s.RecordTime,
		EpochMillis: s.EpochMillis,
		Speed:       s.Speed,
		Lat:         s.Lat,
		Lon:         s.Lon,
		Altitude:    s.Altitude,
		Heading:     s.Heading,
		Summaries:   make(map[string]telemetry.Summary, len(telemetry.SensorNames)),
		States:      make(map[string]string, len(telemetry.StateNames)),
		Label:       resolved,
	}
	for _, name := range telemetry.SensorNames {
		row.Summaries[name] = telemetry.Summarize(s.SensorArrays[name])
	}
	for _, name := range telemetry.StateNames {
		row.States[name] = telemetry.MajorityVote(s.StateArrays[name])
	}

	if !a.Extended {
		return row, nil
	}
	return row, a.accelRows(s)
}

func (a *Assembler) accelRows(s telemetry.Snapshot) []AccelRow {
	n := 0
	for _, name := range telemetry.SensorNames {
		if l := len(s.SensorArrays[name]); l > n {
			n = l
		}
	}
	if n == 0 {
		return nil
	}

	rows := make([]AccelRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, AccelRow{
			VehicleID:   s.VehicleID,
			EpochMillis: s.EpochMillis,
			SampleIndex: i,
			AccelX:      sampleAt(s.SensorArrays["accel_x"], i),
			AccelY:      sampleAt(s.SensorArrays["accel_y"], i),
			AccelZ:      sampleAt(s.SensorArrays["accel_z"], i),
			Gyro:        sampleAt(s.SensorArrays["gyro"], i),
		})
	}
	return rows
}

func sampleAt(arr []float64, i int) float64 {
	if i < len(arr) {
		return arr[i]
	}
	return math.NaN()
}
