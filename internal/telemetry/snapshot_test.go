package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestParseSnapshots_Envelope(t *testing.T) {
	data := []byte(`{
		"vehicle_id": "veh-01",
		"record_time": "20250103120000",
		"data": [
			{
				"epoch_millis": 1000,
				"gps": {"lat": 35.68, "lon": 139.76, "altitude": 12.5},
				"speed": 42.0,
				"heading": 180,
				"status_code": "0000",
				"sensor_arrays": {
					"accel_x": [0.1, 0.2, 0.3],
					"accel_y": [0.0, -0.1],
					"accel_z": [9.8],
					"gyro": [0.01]
				},
				"vehicle_state_arrays": {
					"blinker": ["0", "0", "1"],
					"brake": ["1"]
				}
			}
		]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
	if len(res.Snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(res.Snapshots))
	}

	s := res.Snapshots[0]
	if s.VehicleID != "veh-01" {
		t.Errorf("VehicleID = %q, want veh-01 (inherited from envelope)", s.VehicleID)
	}
	if s.EpochMillis != 1000 {
		t.Errorf("EpochMillis = %d, want 1000", s.EpochMillis)
	}
	if s.StatusCode != "0000" {
		t.Errorf("StatusCode = %q, want 0000", s.StatusCode)
	}
	if s.Speed != 42.0 || s.Lat != 35.68 || s.Lon != 139.76 {
		t.Errorf("direct fields = speed %v lat %v lon %v", s.Speed, s.Lat, s.Lon)
	}
	want := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	if !s.RecordTime.Equal(want) {
		t.Errorf("RecordTime = %v, want %v", s.RecordTime, want)
	}
	if got := s.SensorArrays["accel_x"]; len(got) != 3 || got[1] != 0.2 {
		t.Errorf("accel_x = %v", got)
	}
	if got := s.StateArrays["blinker"]; len(got) != 3 || got[2] != "1" {
		t.Errorf("blinker = %v", got)
	}
}

func TestParseSnapshots_StringWrappedValues(t *testing.T) {
	// The device is loose with types: arrays arrive as quoted literals,
	// scalars and epoch_millis as strings.
	data := []byte(`{
		"vehicle_id": "veh-02",
		"data": [
			{
				"epoch_millis": "2000",
				"speed": "13.5",
				"status_code": "0003",
				"sensor_arrays": {"accel_x": "[1.0, \"2.5\", 3.0]"},
				"vehicle_state_arrays": {"blinker": "[1, 1, 0]"}
			}
		]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	if len(res.Snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(res.Snapshots))
	}

	s := res.Snapshots[0]
	if s.EpochMillis != 2000 {
		t.Errorf("EpochMillis = %d, want 2000 (string coercion)", s.EpochMillis)
	}
	if s.Speed != 13.5 {
		t.Errorf("Speed = %v, want 13.5 (string coercion)", s.Speed)
	}
	if got := s.SensorArrays["accel_x"]; len(got) != 3 || got[1] != 2.5 {
		t.Errorf("accel_x = %v, want [1 2.5 3]", got)
	}
	if got := s.StateArrays["blinker"]; len(got) != 3 || got[0] != "1" {
		t.Errorf("blinker = %v, want numeric tokens normalized to [1 1 0]", got)
	}
}

func TestParseSnapshots_SkipsIncompleteRecords(t *testing.T) {
	data := []byte(`{
		"vehicle_id": "veh-03",
		"data": [
			{"epoch_millis": 1, "status_code": "0000"},
			{"status_code": "0000"},
			{"epoch_millis": 2},
			{"vehicle_id": "", "epoch_millis": "bogus", "status_code": "0000"}
		]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	if len(res.Snapshots) != 1 {
		t.Errorf("got %d snapshots, want 1", len(res.Snapshots))
	}
	if res.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", res.Skipped)
	}
}

func TestParseSnapshots_BadEnvelope(t *testing.T) {
	if _, err := ParseSnapshots([]byte(`{"data": [`)); err == nil {
		t.Error("expected error for truncated envelope")
	}
}

func TestParseSnapshots_InvalidSamplesBecomeNaN(t *testing.T) {
	data := []byte(`{
		"vehicle_id": "veh-04",
		"data": [
			{
				"epoch_millis": 1,
				"status_code": "0000",
				"sensor_arrays": {"accel_x": ["0.5", "garbage", 1.5]}
			}
		]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	got := res.Snapshots[0].SensorArrays["accel_x"]
	if len(got) != 3 {
		t.Fatalf("accel_x length = %d, want 3 (indices must stay aligned)", len(got))
	}
	if got[0] != 0.5 || !math.IsNaN(got[1]) || got[2] != 1.5 {
		t.Errorf("accel_x = %v, want [0.5 NaN 1.5]", got)
	}
}

func TestParseSnapshots_MissingScalarsAreNaN(t *testing.T) {
	data := []byte(`{
		"vehicle_id": "veh-05",
		"data": [{"epoch_millis": 1, "status_code": "0000"}]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	s := res.Snapshots[0]
	if !math.IsNaN(s.Speed) || !math.IsNaN(s.Lat) || !math.IsNaN(s.Heading) {
		t.Errorf("absent scalars must be NaN, got speed %v lat %v heading %v",
			s.Speed, s.Lat, s.Heading)
	}
}

func TestParseSnapshots_TruncatesOversizeArrays(t *testing.T) {
	long := "["
	for i := 0; i < MaxSamples+20; i++ {
		if i > 0 {
			long += ","
		}
		long += "1.0"
	}
	long += "]"

	data := []byte(`{
		"vehicle_id": "veh-06",
		"data": [{"epoch_millis": 1, "status_code": "0000",
			"sensor_arrays": {"gyro": ` + long + `}}]
	}`)

	res, err := ParseSnapshots(data)
	if err != nil {
		t.Fatalf("ParseSnapshots: %v", err)
	}
	if got := len(res.Snapshots[0].SensorArrays["gyro"]); got != MaxSamples {
		t.Errorf("gyro length = %d, want %d", got, MaxSamples)
	}
}

func TestSortChronological(t *testing.T) {
	snaps := []Snapshot{
		{VehicleID: "a", EpochMillis: 300},
		{VehicleID: "b", EpochMillis: 100},
		{VehicleID: "c", EpochMillis: 200},
	}
	SortChronological(snaps)
	for i, want := range []int64{100, 200, 300} {
		if snaps[i].EpochMillis != want {
			t.Errorf("snaps[%d].EpochMillis = %d, want %d", i, snaps[i].EpochMillis, want)
		}
	}
}

func TestGroupByVehicle(t *testing.T) {
	snaps := []Snapshot{
		{VehicleID: "veh-2", EpochMillis: 50},
		{VehicleID: "veh-1", EpochMillis: 30},
		{VehicleID: "veh-2", EpochMillis: 10},
	}
	groups, ids := GroupByVehicle(snaps)

	if len(ids) != 2 || ids[0] != "veh-1" || ids[1] != "veh-2" {
		t.Fatalf("ids = %v, want sorted [veh-1 veh-2]", ids)
	}
	got := groups["veh-2"]
	if len(got) != 2 || got[0].EpochMillis != 10 || got[1].EpochMillis != 50 {
		t.Errorf("veh-2 group not chronological: %v", got)
	}
}
