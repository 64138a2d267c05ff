package dataset

import (
	"math"
	"sort"
)

// Split is the leakage-safe partition of the base table. For every vehicle,
// no test timestamp precedes any train timestamp.
type Split struct {
	Train []BaseRow
	Test  []BaseRow
}

// SplitTemporal partitions rows per vehicle: the first ceil(ratio*n) rows by
// time go to train, the remainder to test, never shuffled across time.
// Vehicles are concatenated in sorted id order so the output is
// deterministic. rows within one vehicle must already be chronologically
// ordered.
func SplitTemporal(rows []BaseRow, ratio float64) Split {
	byVehicle := make(map[string][]BaseRow)
	for _, r := range rows {
		byVehicle[r.VehicleID] = append(byVehicle[r.VehicleID], r)
	}
	ids := make([]string, 0, len(byVehicle))
	for id := range byVehicle {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var split Split
	for _, id := range ids {
		vr := byVehicle[id]
		cut := int(math.Ceil(ratio * float64(len(vr))))
		if cut > len(vr) {
			cut = len(vr)
		}
		split.Train = append(split.Train, vr[:cut]...)
		split.Test = append(split.Test, vr[cut:]...)
	}
	return split
}
