package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/banshee-data/ridership.report/internal/config"
	"github.com/banshee-data/ridership.report/internal/dataset"
	"github.com/banshee-data/ridership.report/internal/db"
	"github.com/banshee-data/ridership.report/internal/label"
	"github.com/banshee-data/ridership.report/internal/monitoring"
	"github.com/banshee-data/ridership.report/internal/telemetry"
)

// Options configures one dataset build.
type Options struct {
	// InputDir holds the raw snapshot files (*.json), one envelope per file.
	InputDir string
	// GroundTruthPath is the external change-flag CSV. Empty disables ground
	// truth and labels come from the transition tables alone.
	GroundTruthPath string
	// Mode is config.ModeBase or config.ModeExtended.
	Mode string
	// Config holds the tuning parameters; nil uses all defaults.
	Config *config.Config
	// Store, when set, persists the output tables and the run summary.
	Store *db.SampleStore
	// OutPrefix, when set, exports CSV tables <prefix>_full.csv,
	// <prefix>_train.csv, <prefix>_test.csv and (extended) <prefix>_accel.csv.
	OutPrefix string
}

// Summary is the processing tally of one run. Per-record skip/degrade events
// land here instead of aborting the batch.
type Summary struct {
	RunID string

	FilesProcessed   int
	FilesSkipped     int
	RecordsProcessed int
	RecordsSkipped   int
	MalformedStatus  int
	GroundTruthHits  int
	GatedDowngrades  int
	DuplicateTruth   int

	// LabelCounts indexes resolved labels 0..2 over the full base table.
	LabelCounts [3]int
}

// Result bundles the assembled tables of one run.
type Result struct {
	Summary Summary

	// Full is the complete base table, per-vehicle chronological, vehicles
	// in sorted id order.
	Full  []dataset.BaseRow
	Split dataset.Split

	// Accel is the extended acceleration table (extended mode only).
	Accel []dataset.AccelRow

	// Stops holds the detected stop segments per vehicle.
	Stops map[string][]label.StopSegment
}

// Pipeline converts a corpus of snapshot files into the labeled datasets.
// Construction performs all configuration-level validation; Run never aborts
// on per-record problems.
type Pipeline struct {
	opts     Options
	cfg      *config.Config
	tables   *label.TransitionTables
	truth    *label.GroundTruthIndex
	detector *label.StopDetector
	gate     bool
}

// New validates the fixed tables and loads the ground-truth index. Any error
// here is a configuration error: the caller must not start processing.
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Empty()
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeBase
	}
	if opts.Mode != config.ModeBase && opts.Mode != config.ModeExtended {
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}

	tables, err := label.NewTransitionTables()
	if err != nil {
		return nil, fmt.Errorf("transition tables: %w", err)
	}

	var truth *label.GroundTruthIndex
	if opts.GroundTruthPath != "" {
		truth, err = label.LoadGroundTruth(opts.GroundTruthPath, cfg.GetStrict())
		if err != nil {
			return nil, fmt.Errorf("ground truth: %w", err)
		}
	}

	detector := label.NewStopDetector(label.StopDetectorConfig{
		SpeedThreshold:     cfg.GetStopSpeedThreshold(),
		MinDurationSeconds: cfg.GetMinStopSeconds(),
		RequireZeroSpeed:   cfg.GetRequireZeroSpeed(),
		MaxGapSeconds:      cfg.GetMaxStopGapSeconds(),
	})

	return &Pipeline{
		opts:     opts,
		cfg:      cfg,
		tables:   tables,
		truth:    truth,
		detector: detector,
		gate:     cfg.GetStopGate(opts.Mode),
	}, nil
}

// Run executes the batch: discover, parse, label, assemble, split, persist,
// export. Per-file and per-record failures are tallied and skipped.
func (p *Pipeline) Run() (*Result, error) {
	res := &Result{Stops: make(map[string][]label.StopSegment)}
	if p.truth != nil {
		res.Summary.DuplicateTruth = p.truth.Duplicates
	}

	snaps, err := p.loadSnapshots(&res.Summary)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no usable snapshot records under %s", p.opts.InputDir)
	}

	groups, ids := telemetry.GroupByVehicle(snaps)
	results := p.processVehicles(groups, ids)

	for _, id := range ids {
		vr := results[id]
		res.Full = append(res.Full, vr.base...)
		res.Accel = append(res.Accel, vr.accel...)
		res.Stops[id] = vr.stops
		res.Summary.MalformedStatus += vr.tally.MalformedStatus
		res.Summary.GroundTruthHits += vr.tally.GroundTruthHits
		res.Summary.GatedDowngrades += vr.tally.GatedDowngrades
	}
	for i := range res.Full {
		res.Summary.LabelCounts[res.Full[i].Label]++
	}
	res.Summary.RecordsProcessed = len(res.Full)

	res.Split = dataset.SplitTemporal(res.Full, p.cfg.GetTrainRatio())

	if err := p.persist(res); err != nil {
		return nil, err
	}
	if err := p.export(res); err != nil {
		return nil, err
	}

	p.logSummary(&res.Summary)
	return res, nil
}

// loadSnapshots parses every *.json file under the input directory. A file
// that cannot be read or decoded is skipped and counted.
func (p *Pipeline) loadSnapshots(sum *Summary) ([]telemetry.Snapshot, error) {
	files, err := filepath.Glob(filepath.Join(p.opts.InputDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshot files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshot files found in %s", p.opts.InputDir)
	}
	sort.Strings(files)

	var snaps []telemetry.Snapshot
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			monitoring.Logf("skip %s: %v", path, err)
			sum.FilesSkipped++
			continue
		}
		parsed, err := telemetry.ParseSnapshots(data)
		if err != nil {
			monitoring.Logf("skip %s: %v", path, err)
			sum.FilesSkipped++
			continue
		}
		sum.FilesProcessed++
		sum.RecordsSkipped += parsed.Skipped
		snaps = append(snaps, parsed.Snapshots...)
	}
	return snaps, nil
}

// vehicleResult is the output of one vehicle shard. Each shard owns its
// labeler state and stop segments exclusively; the only shared input is the
// read-only ground-truth index.
type vehicleResult struct {
	base  []dataset.BaseRow
	accel []dataset.AccelRow
	stops []label.StopSegment
	tally label.Tally
}

// processVehicles shards work by vehicle id across the configured worker
// count. Results are keyed by id so the caller can merge them in sorted
// order regardless of completion order.
func (p *Pipeline) processVehicles(groups map[string][]telemetry.Snapshot, ids []string) map[string]vehicleResult {
	workers := p.cfg.GetWorkers()
	if workers > len(ids) {
		workers = len(ids)
	}

	results := make(map[string]vehicleResult, len(ids))
	if workers <= 1 {
		for _, id := range ids {
			results[id] = p.processVehicle(groups[id])
		}
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	work := make(chan string)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				vr := p.processVehicle(groups[id])
				mu.Lock()
				results[id] = vr
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		work <- id
	}
	close(work)
	wg.Wait()
	return results
}

// processVehicle runs one vehicle's sequence end-to-end: stop detection,
// transition labeling, gating, assembly. snaps are already chronological.
func (p *Pipeline) processVehicle(snaps []telemetry.Snapshot) vehicleResult {
	var vr vehicleResult
	vr.stops = p.detector.Detect(snaps)
	stopIdx := label.NewStopIndex(vr.stops)

	labeler := label.NewLabeler(p.tables, p.truth)
	ctx := label.NewVehicleContext()
	assembler := dataset.Assembler{Extended: p.opts.Mode == config.ModeExtended}

	for i := range snaps {
		s := &snaps[i]
		_, resolved := labeler.Step(ctx, &vr.tally, s.VehicleID, s.EpochMillis, s.StatusCode)
		if p.gate {
			resolved = label.ApplyStopGate(resolved, stopIdx.InStop(s.EpochMillis), &vr.tally)
		}
		base, accel := assembler.Assemble(*s, resolved)
		vr.base = append(vr.base, base)
		vr.accel = append(vr.accel, accel...)
	}
	return vr
}

// persist writes the output tables and the run summary to the store, when
// one is configured. Split rows carry their partition tag; the full table is
// the union of both partitions.
func (p *Pipeline) persist(res *Result) error {
	if p.opts.Store == nil {
		return nil
	}
	runID, err := p.opts.Store.BeginRun(p.opts.Mode)
	if err != nil {
		return err
	}
	res.Summary.RunID = runID

	if err := p.opts.Store.InsertBaseRows(runID, "train", res.Split.Train); err != nil {
		return fmt.Errorf("persist train rows: %w", err)
	}
	if err := p.opts.Store.InsertBaseRows(runID, "test", res.Split.Test); err != nil {
		return fmt.Errorf("persist test rows: %w", err)
	}
	if err := p.opts.Store.InsertAccelRows(runID, res.Accel); err != nil {
		return fmt.Errorf("persist accel rows: %w", err)
	}

	run := &db.Run{
		RunID:            runID,
		Mode:             p.opts.Mode,
		FilesProcessed:   res.Summary.FilesProcessed,
		FilesSkipped:     res.Summary.FilesSkipped,
		RecordsProcessed: res.Summary.RecordsProcessed,
		RecordsSkipped:   res.Summary.RecordsSkipped,
		MalformedStatus:  res.Summary.MalformedStatus,
		GroundTruthHits:  res.Summary.GroundTruthHits,
		GatedDowngrades:  res.Summary.GatedDowngrades,
		DuplicateTruth:   res.Summary.DuplicateTruth,
		LabelNone:        res.Summary.LabelCounts[0],
		LabelBoarding:    res.Summary.LabelCounts[1],
		LabelAlighting:   res.Summary.LabelCounts[2],
	}
	return p.opts.Store.FinishRun(run)
}

// export writes the CSV tables when an output prefix is configured.
func (p *Pipeline) export(res *Result) error {
	prefix := p.opts.OutPrefix
	if prefix == "" {
		return nil
	}
	if err := dataset.ExportBaseCSV(prefix+"_full.csv", res.Full); err != nil {
		return err
	}
	if err := dataset.ExportBaseCSV(prefix+"_train.csv", res.Split.Train); err != nil {
		return err
	}
	if err := dataset.ExportBaseCSV(prefix+"_test.csv", res.Split.Test); err != nil {
		return err
	}
	if p.opts.Mode == config.ModeExtended {
		if err := dataset.ExportAccelCSV(prefix+"_accel.csv", res.Accel); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) logSummary(sum *Summary) {
	monitoring.Logf("processed %d files (%d skipped), %d records (%d skipped)",
		sum.FilesProcessed, sum.FilesSkipped, sum.RecordsProcessed, sum.RecordsSkipped)
	monitoring.Logf("labels: none=%d boarding=%d alighting=%d",
		sum.LabelCounts[0], sum.LabelCounts[1], sum.LabelCounts[2])
	if sum.MalformedStatus > 0 || sum.GatedDowngrades > 0 || sum.DuplicateTruth > 0 {
		monitoring.Logf("degrades: malformed_status=%d gated=%d duplicate_truth=%d",
			sum.MalformedStatus, sum.GatedDowngrades, sum.DuplicateTruth)
	}
}
