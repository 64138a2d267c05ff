package label

import (
	"sort"

	"github.com/banshee-data/ridership.report/internal/telemetry"
)

// StopSegment is a maximal contiguous run of one vehicle's snapshots whose
// speed stays below the detector threshold. The interval is closed on both
// ends; a single-snapshot segment (Start == End) is valid.
type StopSegment struct {
	StartMillis int64
	EndMillis   int64
}

// Contains reports whether a snapshot timestamp falls inside the segment.
func (s StopSegment) Contains(epochMillis int64) bool {
	return epochMillis >= s.StartMillis && epochMillis <= s.EndMillis
}

// StopDetectorConfig tunes stop-segment detection. The zero value of the
// optional fields disables them, leaving pure threshold-crossing detection.
type StopDetectorConfig struct {
	// SpeedThreshold in the unit of the snapshot speed field; speed strictly
	// below it counts as stopped.
	SpeedThreshold float64
	// MinDurationSeconds rejects segments shorter than this. 0 keeps
	// degenerate single-snapshot segments.
	MinDurationSeconds float64
	// RequireZeroSpeed rejects segments without at least one speed == 0
	// instant.
	RequireZeroSpeed bool
	// MaxGapSeconds splits a segment when consecutive snapshots are further
	// apart than this. 0 disables gap splitting.
	MaxGapSeconds float64
}

// StopDetector partitions a vehicle's chronologically ordered snapshot
// sequence into stop segments in a single pass.
type StopDetector struct {
	cfg StopDetectorConfig
}

func NewStopDetector(cfg StopDetectorConfig) *StopDetector {
	return &StopDetector{cfg: cfg}
}

// Detect returns the closed stop segments of one vehicle's sequence. snaps
// must already be in chronological order.
func (d *StopDetector) Detect(snaps []telemetry.Snapshot) []StopSegment {
	var segments []StopSegment

	open := false
	var start, last int64
	hadZero := false

	flush := func() {
		if !open {
			return
		}
		open = false
		seg := StopSegment{StartMillis: start, EndMillis: last}
		if d.cfg.MinDurationSeconds > 0 &&
			float64(seg.EndMillis-seg.StartMillis) < d.cfg.MinDurationSeconds*1000 {
			return
		}
		if d.cfg.RequireZeroSpeed && !hadZero {
			return
		}
		segments = append(segments, seg)
	}

	for _, s := range snaps {
		if open && d.cfg.MaxGapSeconds > 0 &&
			float64(s.EpochMillis-last) > d.cfg.MaxGapSeconds*1000 {
			flush()
		}

		// NaN speed compares false, so records without a usable speed never
		// open or extend a segment.
		stopped := s.Speed < d.cfg.SpeedThreshold
		switch {
		case stopped && !open:
			open = true
			start = s.EpochMillis
			last = s.EpochMillis
			hadZero = s.Speed == 0
		case stopped:
			last = s.EpochMillis
			hadZero = hadZero || s.Speed == 0
		case open:
			flush()
		}
	}
	flush()

	return segments
}

// StopIndex answers in-stop membership queries over a vehicle's detected
// segments.
type StopIndex struct {
	segments []StopSegment
}

// NewStopIndex builds an index over segments, which must be non-overlapping;
// they are sorted by start time.
func NewStopIndex(segments []StopSegment) *StopIndex {
	sorted := make([]StopSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMillis < sorted[j].StartMillis })
	return &StopIndex{segments: sorted}
}

// InStop reports whether the timestamp falls within some closed stop segment.
func (idx *StopIndex) InStop(epochMillis int64) bool {
	if idx == nil {
		return false
	}
	// First segment starting after the timestamp; the candidate is the one
	// before it.
	i := sort.Search(len(idx.segments), func(i int) bool {
		return idx.segments[i].StartMillis > epochMillis
	})
	if i == 0 {
		return false
	}
	return idx.segments[i-1].Contains(epochMillis)
}

// Segments returns the indexed segments in start order.
func (idx *StopIndex) Segments() []StopSegment {
	if idx == nil {
		return nil
	}
	return idx.segments
}
