package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/banshee-data/ridership.report/internal/telemetry"
)

// csvTimeLayout is the calendar format of the record_time output column.
const csvTimeLayout = "2006-01-02 15:04:05"

// BaseHeader returns the column list of the base/aggregated table.
func BaseHeader() []string {
	header := []string{
		"vehicle_id", "record_time", "epoch_millis",
		"speed", "lat", "lon", "altitude", "heading",
	}
	for _, sensor := range telemetry.SensorNames {
		for _, stat := range telemetry.SummaryStats {
			header = append(header, sensor+"_"+stat)
		}
	}
	header = append(header, telemetry.StateNames...)
	return append(header, "label")
}

// AccelHeader returns the column list of the extended acceleration table.
func AccelHeader() []string {
	return []string{"vehicle_id", "epoch_millis", "sample_index", "accel_x", "accel_y", "accel_z", "gyro"}
}

// WriteBaseCSV writes the base table to w, header first. Missing numeric
// values (NaN markers) become empty fields so downstream readers see them as
// NA rather than zero.
func WriteBaseCSV(w io.Writer, rows []BaseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BaseHeader()); err != nil {
		return fmt.Errorf("write base header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(baseRecord(&rows[i])); err != nil {
			return fmt.Errorf("write base row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func baseRecord(r *BaseRow) []string {
	recordTime := ""
	if !r.RecordTime.IsZero() {
		recordTime = r.RecordTime.Format(csvTimeLayout)
	}
	rec := []string{
		r.VehicleID,
		recordTime,
		strconv.FormatInt(r.EpochMillis, 10),
		formatFloat(r.Speed),
		formatFloat(r.Lat),
		formatFloat(r.Lon),
		formatFloat(r.Altitude),
		formatFloat(r.Heading),
	}
	for _, sensor := range telemetry.SensorNames {
		for _, v := range r.Summaries[sensor].Values() {
			rec = append(rec, formatFloat(v))
		}
	}
	for _, state := range telemetry.StateNames {
		rec = append(rec, r.States[state])
	}
	return append(rec, strconv.Itoa(int(r.Label)))
}

// WriteAccelCSV writes the extended acceleration table to w, header first.
func WriteAccelCSV(w io.Writer, rows []AccelRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AccelHeader()); err != nil {
		return fmt.Errorf("write accel header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.VehicleID,
			strconv.FormatInt(r.EpochMillis, 10),
			strconv.Itoa(r.SampleIndex),
			formatFloat(r.AccelX),
			formatFloat(r.AccelY),
			formatFloat(r.AccelZ),
			formatFloat(r.Gyro),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write accel row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportBaseCSV writes rows to path, creating or truncating the file.
func ExportBaseCSV(path string, rows []BaseRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteBaseCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportAccelCSV writes rows to path, creating or truncating the file.
func ExportAccelCSV(path string, rows []AccelRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteAccelCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
