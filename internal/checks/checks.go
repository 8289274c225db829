// Package checks scans freshly imported counts for data that is technically
// valid but unlikely to be correct, logging warnings for staff review.
package checks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

// A bidirectional count with one direction under this share of the total is
// suspicious; traffic is normally close to balanced over a full day.
const directionShareLowerBound = 0.40

// More bicycles than this in a 15-minute period suggests a miscounting sensor.
const bicycleBinMax = 20

// Zero-volume scanning is limited to waking hours; empty overnight hours are
// normal.
const (
	zeroScanStartHour = 4
	zeroScanEndHour   = 22
)

// Datastore is the database surface the checks need.
type Datastore interface {
	ClassTotals(ctx context.Context, recordnum int) (store.ClassTotals, error)
	HourlyVolumes(ctx context.Context, kind domain.CountKind, recordnum int) ([]domain.HourlyCount, error)
	HourlyInOutVolumes(ctx context.Context, kind domain.CountKind, recordnum int) ([]store.HourlyInOutVolume, error)
	RecordHeader(ctx context.Context, recordnum int) (store.RecordHeader, error)
	BicycleBins(ctx context.Context, recordnum int) ([]store.TimedTotal, error)
}

// Result is the outcome of one check.
type Result struct {
	Level   slog.Level
	Message string
}

func info(message string) Result {
	return Result{Level: slog.LevelInfo, Message: message}
}

func warn(message string) Result {
	return Result{Level: slog.LevelWarn, Message: message}
}

// Run applies the checks appropriate to the kind of count and returns any
// warnings found. Checks that error are reported as warnings themselves so
// one failure does not hide the others.
func Run(ctx context.Context, ds Datastore, kind domain.CountKind, recordnum int) []Result {
	var checks []func() (Result, error)
	switch kind {
	case domain.IndividualVehicleKind:
		checks = []func() (Result, error){
			func() (Result, error) { return unclassifiedShare(ctx, ds, recordnum) },
			func() (Result, error) { return passengerCarShare(ctx, ds, recordnum) },
			func() (Result, error) { return directionProportion(ctx, ds, kind, recordnum) },
			func() (Result, error) { return zeroHours(ctx, ds, kind, recordnum) },
		}
	case domain.FifteenMinuteVehicleKind:
		checks = []func() (Result, error){
			func() (Result, error) { return directionProportion(ctx, ds, kind, recordnum) },
			func() (Result, error) { return zeroHours(ctx, ds, kind, recordnum) },
		}
	case domain.FifteenMinuteBicycleKind:
		checks = []func() (Result, error){
			func() (Result, error) { return inOutProportion(ctx, ds, kind, recordnum) },
			func() (Result, error) { return excessiveBicycles(ctx, ds, recordnum) },
			func() (Result, error) { return zeroHoursInOut(ctx, ds, kind, recordnum) },
		}
	}

	var warnings []Result
	for _, check := range checks {
		result, err := check()
		if err != nil {
			warnings = append(warnings, warn(fmt.Sprintf("check failed: %v", err)))
			continue
		}
		if result.Level == slog.LevelWarn {
			warnings = append(warnings, result)
		}
	}
	return warnings
}

// passengerCarShare warns when class 2 vehicles fall under 75% of the total,
// which is unusual outside of truck corridors.
func passengerCarShare(ctx context.Context, ds Datastore, recordnum int) (Result, error) {
	totals, err := ds.ClassTotals(ctx, recordnum)
	if err != nil {
		return Result{}, err
	}
	if totals.Total == 0 {
		return info("count is empty"), nil
	}
	percent := float64(totals.C2) / float64(totals.Total) * 100
	if percent < 75.0 {
		return warn(fmt.Sprintf("class 2 vehicles are less than 75%% (%.1f%%) of total", percent)), nil
	}
	return info("share of class 2 vehicles is within expectations"), nil
}

// unclassifiedShare warns when unclassified vehicles exceed 10% of the
// total, a sign of bad tube placement or sensor trouble.
func unclassifiedShare(ctx context.Context, ds Datastore, recordnum int) (Result, error) {
	totals, err := ds.ClassTotals(ctx, recordnum)
	if err != nil {
		return Result{}, err
	}
	if totals.Total == 0 {
		return info("count is empty"), nil
	}
	percent := float64(totals.C15) / float64(totals.Total) * 100
	if percent > 10.0 {
		return warn(fmt.Sprintf("unclassed vehicles are greater than 10%% (%.1f%%) of total", percent)), nil
	}
	return info("share of unclassed vehicles is within expectations"), nil
}

// directionProportion warns when a bidirectional vehicle count is heavily
// skewed toward one direction.
func directionProportion(ctx context.Context, ds Datastore, kind domain.CountKind, recordnum int) (Result, error) {
	hourlies, err := ds.HourlyVolumes(ctx, kind, recordnum)
	if err != nil {
		return Result{}, err
	}
	byDirection := make(map[domain.Direction]int)
	for _, h := range hourlies {
		byDirection[h.Direction] += h.Count
	}
	if len(byDirection) < 2 {
		return info("skipping direction proportion check, count has one direction"), nil
	}

	var dirs []domain.Direction
	total := 0
	for d, count := range byDirection {
		dirs = append(dirs, d)
		total += count
	}
	return shareResult(dirs[0], byDirection[dirs[0]], dirs[1], byDirection[dirs[1]], total), nil
}

// inOutProportion is the direction check for bicycle counts, whose rows hold
// both directions and whose direction names live on the header row.
func inOutProportion(ctx context.Context, ds Datastore, kind domain.CountKind, recordnum int) (Result, error) {
	header, err := ds.RecordHeader(ctx, recordnum)
	if err != nil {
		return Result{}, err
	}
	if header.InDirection == nil || header.OutDirection == nil {
		return info("skipping direction proportion check, count has one direction"), nil
	}

	hourlies, err := ds.HourlyInOutVolumes(ctx, kind, recordnum)
	if err != nil {
		return Result{}, err
	}
	var in, out int
	for _, h := range hourlies {
		in += h.In
		out += h.Out
	}
	return shareResult(*header.InDirection, in, *header.OutDirection, out, in+out), nil
}

func shareResult(dir1 domain.Direction, count1 int, dir2 domain.Direction, count2 int, total int) Result {
	if total == 0 {
		return info("count is empty")
	}
	share1 := float64(count1) / float64(total)
	share2 := float64(count2) / float64(total)
	if share1 < directionShareLowerBound || share2 < directionShareLowerBound {
		return warn(fmt.Sprintf(
			"abnormal direction proportions: %s has %.1f%% of total, %s has %.1f%% (expectation is no direction under %.0f%%)",
			dir1, share1*100, dir2, share2*100, directionShareLowerBound*100))
	}
	return info("direction proportions are within expectations")
}

// zeroHours warns when a vehicle count has consecutive daytime hours with no
// traffic at all.
func zeroHours(ctx context.Context, ds Datastore, kind domain.CountKind, recordnum int) (Result, error) {
	hourlies, err := ds.HourlyVolumes(ctx, kind, recordnum)
	if err != nil {
		return Result{}, err
	}
	volumes := make([]int, 0, len(hourlies))
	for _, h := range hourlies {
		if daytime(h.Time) {
			volumes = append(volumes, h.Count)
		}
	}
	return zeroRunResult(volumes), nil
}

func zeroHoursInOut(ctx context.Context, ds Datastore, kind domain.CountKind, recordnum int) (Result, error) {
	hourlies, err := ds.HourlyInOutVolumes(ctx, kind, recordnum)
	if err != nil {
		return Result{}, err
	}
	volumes := make([]int, 0, len(hourlies))
	for _, h := range hourlies {
		if daytime(h.Time) {
			volumes = append(volumes, h.Total)
		}
	}
	return zeroRunResult(volumes), nil
}

func daytime(t time.Time) bool {
	return t.Hour() >= zeroScanStartHour && t.Hour() <= zeroScanEndHour
}

func zeroRunResult(volumes []int) Result {
	consecutive := 0
	for _, v := range volumes {
		if v == 0 {
			consecutive++
		} else {
			consecutive = 0
		}
		if consecutive > 1 {
			return warn(fmt.Sprintf(
				"consecutive periods between the hours of %d:00 and %d:00 with zero volumes",
				zeroScanStartHour, zeroScanEndHour))
		}
	}
	return info("no consecutive hourly periods of zero volume")
}

// excessiveBicycles warns when any 15-minute bin holds an implausible number
// of bicycles.
func excessiveBicycles(ctx context.Context, ds Datastore, recordnum int) (Result, error) {
	bins, err := ds.BicycleBins(ctx, recordnum)
	if err != nil {
		return Result{}, err
	}
	var excessive []string
	for _, bin := range bins {
		if bin.Total > bicycleBinMax {
			excessive = append(excessive, fmt.Sprintf("%s: %d", bin.Time.Format("2006-01-02 15:04"), bin.Total))
		}
	}
	if len(excessive) == 0 {
		return info("all bins under the excessive bicycle threshold"), nil
	}
	return warn(fmt.Sprintf("found more than %d bicycles counted in the following periods: %s",
		bicycleBinMax, strings.Join(excessive, "; "))), nil
}
