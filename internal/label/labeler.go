package label

// VehicleContext is the mutable per-vehicle state of the transition labeler.
// It is owned exclusively by the processing of one vehicle's sequence and
// passed explicitly into Step, keeping the state machine testable and safe to
// shard by vehicle.
type VehicleContext struct {
	PrevStatus string
}

// NewVehicleContext returns the state for the start of a vehicle's sequence,
// with the previous status at the unknown sentinel.
func NewVehicleContext() *VehicleContext {
	return &VehicleContext{PrevStatus: UnknownStatus}
}

// Tally accumulates per-record degrade events. Nothing here is fatal; the
// pipeline surfaces the totals in its processing summary.
type Tally struct {
	MalformedStatus int // status codes outside the 4-digit domain
	GroundTruthHits int // snapshots resolved from the external table
	GatedDowngrades int // labels downgraded to 0 outside stop segments
}

// Labeler resolves a label per snapshot from the fixed transition tables and
// the external ground-truth index. Ground truth takes precedence whenever an
// entry exists; the transition candidate fills the gaps.
type Labeler struct {
	tables *TransitionTables
	truth  *GroundTruthIndex
}

// NewLabeler builds a labeler. tables must already be validated; truth may be
// nil when no external table is available.
func NewLabeler(tables *TransitionTables, truth *GroundTruthIndex) *Labeler {
	return &Labeler{tables: tables, truth: truth}
}

// Step processes one snapshot in chronological order for one vehicle. It
// returns the transition candidate and the resolved label, and advances the
// context unconditionally. Malformed status codes never fail: they match
// neither table and are counted in the tally.
func (l *Labeler) Step(ctx *VehicleContext, tally *Tally, vehicleID string, epochMillis int64, statusCode string) (candidate, resolved Label) {
	if !validCode(statusCode) {
		tally.MalformedStatus++
	}

	candidate = l.tables.Classify(ctx.PrevStatus, statusCode)
	ctx.PrevStatus = statusCode

	resolved = candidate
	if truth, ok := l.truth.Lookup(vehicleID, epochMillis); ok {
		resolved = truth
		tally.GroundTruthHits++
	}
	return candidate, resolved
}

// ApplyStopGate downgrades a boarding/alighting label that falls outside any
// stop segment. Boarding and alighting cannot happen while the vehicle is
// moving, so an out-of-stop transition is treated as noise.
func ApplyStopGate(l Label, inStop bool, tally *Tally) Label {
	if l == LabelNone || inStop {
		return l
	}
	tally.GatedDowngrades++
	return LabelNone
}
