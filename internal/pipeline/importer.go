// Package pipeline orchestrates the import of count files: it watches the
// data directory, extracts and bins each file's records, replaces the
// record's database rows, calculates its annual average daily volume, runs
// data checks, and announces the result on the event stream.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvrpc/traffic-counts-sub000/internal/checks"
	"github.com/dvrpc/traffic-counts-sub000/internal/config"
	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
	"github.com/dvrpc/traffic-counts-sub000/internal/extract"
	"github.com/dvrpc/traffic-counts-sub000/internal/observability"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

// Bicycle and pedestrian files carry a single header row with no reliable
// fingerprint, so their skip count is fixed rather than detected.
const bikePedSkipRows = 1

// Datastore is the database surface the importer needs, satisfied by
// *store.Store.
type Datastore interface {
	checks.Datastore

	Ping(ctx context.Context) error
	RecordExists(ctx context.Context, recordnum int) (bool, error)
	ReplaceVehicleClassCounts(ctx context.Context, recordnum int, rows []domain.ClassBucket) error
	ReplaceSpeedRangeCounts(ctx context.Context, recordnum int, rows []domain.SpeedBucket) error
	ReplaceFifteenMinuteVehicles(ctx context.Context, recordnum int, rows []domain.FifteenMinuteVehicle) error
	ReplaceBicycleCounts(ctx context.Context, recordnum int, rows []domain.FifteenMinuteBikePed) error
	ReplacePedestrianCounts(ctx context.Context, recordnum int, rows []domain.FifteenMinuteBikePed) error
	ReplaceVolumePivot(ctx context.Context, recordnum int, rows []domain.NonNormalVolCount) error
	ReplaceSpeedPivot(ctx context.Context, recordnum int, rows []domain.NonNormalAvgSpeedCount) error
	InsertImportLogEntry(ctx context.Context, entry store.ImportLogEntry) error
	MarkImported(ctx context.Context, meta domain.Metadata) error
}

// AADVCalculator computes and stores annual average daily volumes,
// satisfied by *aadv.Calculator.
type AADVCalculator interface {
	CalculateAndStore(ctx context.Context, kind domain.CountKind, recordnum int) error
}

// EventPublisher announces import outcomes, satisfied by *kafka.Writer.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ImportEvent) error
}

// Importer processes count files from the data directory.
type Importer struct {
	dataDir      string
	cleanupFiles bool
	pollInterval time.Duration

	store      Datastore
	calculator AADVCalculator
	publisher  EventPublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates an Importer.
func New(cfg *config.Config, store Datastore, calculator AADVCalculator, publisher EventPublisher, logger *slog.Logger, metrics *observability.Metrics) *Importer {
	return &Importer{
		dataDir:      cfg.DataDir,
		cleanupFiles: cfg.CleanupFiles,
		pollInterval: cfg.PollInterval,
		store:        store,
		calculator:   calculator,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

// CheckReadiness reports whether the database is reachable.
func (i *Importer) CheckReadiness(ctx context.Context) error {
	return i.store.Ping(ctx)
}

// Run polls the data directory until the context is canceled. Errors in
// individual files are logged and do not stop the loop.
func (i *Importer) Run(ctx context.Context) error {
	i.metrics.ImportRunning.Set(1)
	defer i.metrics.ImportRunning.Set(0)

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		if err := i.ProcessDirectory(ctx); err != nil {
			i.logger.Error("directory scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessDirectory imports every count file currently in the data directory.
func (i *Importer) ProcessDirectory(ctx context.Context) error {
	paths, err := collectPaths(i.dataDir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", i.dataDir, err)
	}
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.ProcessFile(ctx, path)
	}
	return nil
}

// collectPaths gathers the file paths to extract data from, skipping logs.
func collectPaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".log") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// ProcessFile imports one count file end to end. All failures are logged;
// none are fatal to the caller.
func (i *Importer) ProcessFile(ctx context.Context, path string) {
	start := time.Now()

	kind, err := extract.KindFromDir(path)
	if err != nil {
		i.logger.Error("file not processed", "path", path, "error", err)
		i.cleanup(path)
		return
	}
	logger := i.logger.With("path", path, "kind", kind.String())

	meta, err := extract.ParseMetadata(path)
	if err != nil {
		logger.Error("file not processed", "error", err)
		i.metrics.FilesFailed.WithLabelValues(kind.String()).Inc()
		i.cleanup(path)
		return
	}
	logger = logger.With("recordnum", meta.Recordnum)

	exists, err := i.store.RecordExists(ctx, meta.Recordnum)
	if err != nil {
		logger.Error("header lookup failed", "error", err)
		i.metrics.FilesFailed.WithLabelValues(kind.String()).Inc()
		return
	}
	if !exists {
		i.report(ctx, logger, meta.Recordnum, slog.LevelError,
			"not processed: recordnum not found in tc_header table")
		i.metrics.FilesFailed.WithLabelValues(kind.String()).Inc()
		i.cleanup(path)
		return
	}

	i.report(ctx, logger, meta.Recordnum, slog.LevelInfo,
		fmt.Sprintf("extracting data from %s, a %s count", filepath.Base(path), kind))

	rows, err := i.importCounts(ctx, kind, meta, path)
	if err != nil {
		i.report(ctx, logger, meta.Recordnum, slog.LevelError,
			fmt.Sprintf("not processed: %v", err))
		i.metrics.FilesFailed.WithLabelValues(kind.String()).Inc()
		i.publishEvent(ctx, logger, kind, meta.Recordnum, domain.ImportStatusFailed, 0, 0)
		i.cleanup(path)
		return
	}
	i.metrics.RecordsExtracted.WithLabelValues(kind.String()).Add(float64(rows))

	if err := i.store.MarkImported(ctx, meta); err != nil {
		logger.Error("unable to update header row", "error", err)
	}

	// Bicycle counts need a factor group assigned by staff after import, so
	// their AADV is calculated later, out of band.
	if kind != domain.FifteenMinuteBicycleKind {
		if err := i.calculator.CalculateAndStore(ctx, kind, meta.Recordnum); err != nil {
			i.report(ctx, logger, meta.Recordnum, slog.LevelError,
				fmt.Sprintf("failed to calculate aadv: %v", err))
		} else {
			i.metrics.AADVCalculations.Inc()
			i.report(ctx, logger, meta.Recordnum, slog.LevelInfo, "aadv calculated and stored")
		}
	}

	warnings := checks.Run(ctx, i.store, kind, meta.Recordnum)
	for _, warning := range warnings {
		i.metrics.CheckWarnings.Inc()
		i.report(ctx, logger, meta.Recordnum, warning.Level, warning.Message)
	}

	i.publishEvent(ctx, logger, kind, meta.Recordnum, domain.ImportStatusImported, rows, len(warnings))
	i.metrics.FilesProcessed.WithLabelValues(kind.String()).Inc()
	i.metrics.FileProcessingDuration.Observe(time.Since(start).Seconds())
	i.cleanup(path)
	logger.Info("file imported", "rows", rows, "warnings", len(warnings))
}

// importCounts extracts a file's records and replaces the database rows
// derived from them, returning the number of extracted records.
func (i *Importer) importCounts(ctx context.Context, kind domain.CountKind, meta domain.Metadata, path string) (int, error) {
	if err := extract.VerifyKind(path, kind); err != nil {
		return 0, err
	}

	skip := bikePedSkipRows
	if kind == domain.IndividualVehicleKind || kind == domain.FifteenMinuteVehicleKind {
		var err error
		if skip, err = extract.FileSkipRows(path); err != nil {
			return 0, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch kind {
	case domain.IndividualVehicleKind:
		events, err := extract.VehicleEvents(f, skip, i.logger)
		if err != nil {
			return 0, err
		}
		return len(events), i.importVehicleEvents(ctx, meta, events)
	case domain.FifteenMinuteVehicleKind:
		rows, err := extract.FifteenMinuteVehicles(f, skip, meta)
		if err != nil {
			return 0, err
		}
		return len(rows), i.importFifteenMinuteVehicles(ctx, meta, rows)
	case domain.FifteenMinuteBicycleKind:
		rows, err := extract.BikePeds(f, skip, meta)
		if err != nil {
			return 0, err
		}
		return len(rows), i.store.ReplaceBicycleCounts(ctx, meta.Recordnum, rows)
	case domain.FifteenMinutePedestrianKind:
		rows, err := extract.BikePeds(f, skip, meta)
		if err != nil {
			return 0, err
		}
		return len(rows), i.store.ReplacePedestrianCounts(ctx, meta.Recordnum, rows)
	}
	return 0, fmt.Errorf("no import for kind %v", kind)
}

// importVehicleEvents bins individual vehicle events into class and speed
// histograms and pivots them into hourly rows.
func (i *Importer) importVehicleEvents(ctx context.Context, meta domain.Metadata, events []domain.VehicleEvent) error {
	classCounts, speedCounts := domain.BinClassAndSpeed(meta, events, i.logger)

	if err := i.store.ReplaceVehicleClassCounts(ctx, meta.Recordnum, domain.ClassBuckets(meta, classCounts)); err != nil {
		return err
	}
	if err := i.store.ReplaceSpeedRangeCounts(ctx, meta.Recordnum, domain.SpeedBuckets(meta, speedCounts)); err != nil {
		return err
	}
	if err := i.store.ReplaceVolumePivot(ctx, meta.Recordnum, domain.BuildVolumePivot(meta, events, i.logger)); err != nil {
		return err
	}
	return i.store.ReplaceSpeedPivot(ctx, meta.Recordnum, domain.BuildSpeedPivot(meta, events, i.logger))
}

// importFifteenMinuteVehicles stores pre-binned volume rows and rebuilds the
// pivoted hourly table from what was stored.
func (i *Importer) importFifteenMinuteVehicles(ctx context.Context, meta domain.Metadata, rows []domain.FifteenMinuteVehicle) error {
	if err := i.store.ReplaceFifteenMinuteVehicles(ctx, meta.Recordnum, rows); err != nil {
		return err
	}
	hourlies, err := i.store.HourlyVolumes(ctx, domain.FifteenMinuteVehicleKind, meta.Recordnum)
	if err != nil {
		return err
	}
	return i.store.ReplaceVolumePivot(ctx, meta.Recordnum, domain.PivotHourlyCounts(hourlies))
}

// report logs a message both to the service log and to the per-record import
// log in the database.
func (i *Importer) report(ctx context.Context, logger *slog.Logger, recordnum int, level slog.Level, msg string) {
	logger.Log(ctx, level, msg)
	entry := store.NewImportLogEntry(recordnum, level, msg)
	if err := i.store.InsertImportLogEntry(ctx, entry); err != nil {
		logger.Error("unable to write import log entry", "error", err)
	}
}

func (i *Importer) publishEvent(ctx context.Context, logger *slog.Logger, kind domain.CountKind, recordnum int, status string, rows, warnings int) {
	event := domain.ImportEvent{
		Recordnum:  recordnum,
		Kind:       kind.String(),
		Status:     status,
		Rows:       rows,
		Warnings:   warnings,
		ImportedAt: time.Now().UTC(),
	}
	if err := i.publisher.Publish(ctx, event); err != nil {
		logger.Error("unable to publish import event", "error", err)
	}
}

func (i *Importer) cleanup(path string) {
	if !i.cleanupFiles {
		return
	}
	if err := os.Remove(path); err != nil {
		i.logger.Error("unable to delete file", "path", path, "error", err)
	}
}
