package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/ridership.report/internal/config"
	"github.com/banshee-data/ridership.report/internal/db"
	"github.com/banshee-data/ridership.report/internal/pipeline"
	"github.com/banshee-data/ridership.report/internal/report"
)

var (
	inputDir    = flag.String("input", "./json", "directory of raw snapshot JSON files")
	groundTruth = flag.String("ground-truth", "", "path to the change-flag CSV (optional)")
	dbPath      = flag.String("db", "dataset.db", "path to the dataset sqlite db (empty disables persistence)")
	outPrefix   = flag.String("out", "", "CSV output prefix (empty disables CSV export)")
	mode        = flag.String("mode", config.ModeBase, "processing mode: base or extended")
	configPath  = flag.String("config", "", "path to a tuning JSON file")
	reportDir   = flag.String("report-dir", "", "directory for the HTML report and speed plots (empty disables)")
	strict      = flag.Bool("strict", false, "treat duplicate ground-truth keys as fatal")
	workers     = flag.Int("workers", 0, "vehicle shards processed in parallel (0 uses the config value)")
)

func main() {
	flag.Parse()

	// Subcommands come after the flags, e.g. `dataset -db out.db migrate up`.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *strict {
		cfg.Strict = strict
	}
	if *workers > 0 {
		cfg.Workers = workers
	}

	opts := pipeline.Options{
		InputDir:        *inputDir,
		GroundTruthPath: *groundTruth,
		Mode:            *mode,
		Config:          cfg,
		OutPrefix:       *outPrefix,
	}

	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		opts.Store = db.NewSampleStore(database)
	}

	p, err := pipeline.New(opts)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	res, err := p.Run()
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}

	log.Printf("run %s complete: %d train rows, %d test rows, %d accel rows",
		res.Summary.RunID, len(res.Split.Train), len(res.Split.Test), len(res.Accel))

	if *reportDir != "" {
		writeReports(*reportDir, res)
	}
}

// writeReports renders the post-run diagnostics. Report failures are logged,
// not fatal: the dataset outputs are already on disk.
func writeReports(dir string, res *pipeline.Result) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("create report dir: %v", err)
		return
	}
	if err := report.WriteLabelDistribution(filepath.Join(dir, "labels.html"), res.Full); err != nil {
		log.Printf("label distribution report: %v", err)
	}

	plotter := report.NewSpeedPlotter(dir)
	start := 0
	for i := 1; i <= len(res.Full); i++ {
		if i == len(res.Full) || res.Full[i].VehicleID != res.Full[start].VehicleID {
			id := res.Full[start].VehicleID
			if err := plotter.PlotVehicle(id, res.Full[start:i], res.Stops[id]); err != nil {
				log.Printf("speed plot for %s: %v", id, err)
			}
			start = i
		}
	}
}
