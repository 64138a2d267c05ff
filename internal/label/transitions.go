package label

import "fmt"

// Label is the three-class target of the dataset: 0 no change, 1 boarding,
// 2 alighting.
type Label int

const (
	LabelNone     Label = 0
	LabelBoarding Label = 1
	LabelAlight   Label = 2
)

// UnknownStatus is the sentinel previous-status value at the start of a
// vehicle's sequence, before any real code has been observed.
const UnknownStatus = ""

// statusCodeWidth is the fixed width of the device status field.
const statusCodeWidth = 4

// boardingCodes and alightingCodes are the fixed transition tables from the
// fleet operator. A key matches when the status field changes and the
// post-transition code equals the key. The two tables are disjoint by
// construction; ValidateTransitionTables enforces that at startup.
var boardingCodes = []string{
	"0003", "0012", "0014", "0103", "0112", "0114",
	"0203", "0212", "0214", "0403", "0412", "0414",
	"0503", "0512", "0514", "0603", "0612", "0614",
	"0803", "0812", "0814", "1303", "1312", "1314",
	"1503", "1512", "1514",
}

var alightingCodes = []string{
	"0300", "1200", "1400", "0301", "1201", "1401",
	"0302", "1202", "1402", "0304", "1204", "1404",
	"0305", "1205", "1405", "0306", "1206", "1406",
	"0308", "1208", "1408", "0313", "1213", "1413",
	"0315", "1215", "1415",
}

// TransitionTables holds the boarding and alighting lookup sets.
type TransitionTables struct {
	boarding  map[string]struct{}
	alighting map[string]struct{}
}

// NewTransitionTables builds the lookup sets from the fixed code lists and
// validates them. Overlap between the tables is a configuration error: the
// labeler depends on their disjointness, so the caller must abort before any
// per-vehicle processing.
func NewTransitionTables() (*TransitionTables, error) {
	t := &TransitionTables{
		boarding:  make(map[string]struct{}, len(boardingCodes)),
		alighting: make(map[string]struct{}, len(alightingCodes)),
	}
	for _, c := range boardingCodes {
		t.boarding[c] = struct{}{}
	}
	for _, c := range alightingCodes {
		t.alighting[c] = struct{}{}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks code shape and table disjointness.
func (t *TransitionTables) Validate() error {
	for code := range t.boarding {
		if err := checkCodeShape(code); err != nil {
			return fmt.Errorf("boarding table: %w", err)
		}
	}
	for code := range t.alighting {
		if err := checkCodeShape(code); err != nil {
			return fmt.Errorf("alighting table: %w", err)
		}
		if _, dup := t.boarding[code]; dup {
			return fmt.Errorf("transition code %q appears in both the boarding and alighting tables", code)
		}
	}
	return nil
}

func checkCodeShape(code string) error {
	if len(code) != statusCodeWidth {
		return fmt.Errorf("code %q is not %d characters", code, statusCodeWidth)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("code %q contains a non-digit character", code)
		}
	}
	return nil
}

// validCode reports whether a raw status field is inside the table domain.
func validCode(code string) bool {
	return checkCodeShape(code) == nil
}

// Classify resolves the candidate label for one observed transition. A key
// only matches when the code actually changed; equal consecutive codes, the
// unknown sentinel, and codes outside the table domain all classify as
// LabelNone.
func (t *TransitionTables) Classify(prev, curr string) Label {
	if prev == UnknownStatus || prev == curr {
		return LabelNone
	}
	if !validCode(curr) {
		return LabelNone
	}
	if _, ok := t.boarding[curr]; ok {
		return LabelBoarding
	}
	if _, ok := t.alighting[curr]; ok {
		return LabelAlight
	}
	return LabelNone
}
