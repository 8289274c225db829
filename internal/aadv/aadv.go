// Package aadv calculates annual average daily volumes from imported counts.
//
// A count's AADV is the average of its full days of data, each day weighted
// by seasonal, axle, and equipment adjustment factors. One value is produced
// per observed direction plus an overall value covering all directions.
package aadv

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

// Datastore is the database surface the calculator needs.
type Datastore interface {
	CountDatetimes(ctx context.Context, kind domain.CountKind, recordnum int) ([]time.Time, error)
	DirectionalTotalsByDate(ctx context.Context, kind domain.CountKind, recordnum int) ([]store.DailyTotal, error)
	InOutTotalsByDate(ctx context.Context, kind domain.CountKind, recordnum int) ([]store.InOutTotal, error)
	RecordHeader(ctx context.Context, recordnum int) (store.RecordHeader, error)
	EquipmentFactor(ctx context.Context, countType string) (*float64, error)
	SeasonalFactors(ctx context.Context, fc int, date time.Time) (store.SeasonalFactors, error)
	BicycleFactor(ctx context.Context, group string, date time.Time) (float64, error)
	PedestrianFactor(ctx context.Context, month time.Month) (float64, error)
	ExcludedDays(ctx context.Context) ([]time.Time, error)
	ReplaceAADV(ctx context.Context, recordnum int, values map[domain.Direction]int) error
}

// Calculator computes and stores AADVs.
type Calculator struct {
	store  Datastore
	logger *slog.Logger
}

// New creates a Calculator.
func New(store Datastore, logger *slog.Logger) *Calculator {
	return &Calculator{store: store, logger: logger}
}

// dailyTotal is one day's volume for one direction, the empty direction
// meaning the overall total across directions.
type dailyTotal struct {
	date      time.Time
	direction domain.Direction
	total     int
}

// Calculate computes a record's AADVs from its stored binned rows. The
// returned map has one entry per observed direction and one overall entry
// under the empty direction. The map is empty when the record has no full,
// non-excluded days of data.
func (c *Calculator) Calculate(ctx context.Context, kind domain.CountKind, recordnum int) (map[domain.Direction]int, error) {
	totals, err := c.usableDailyTotals(ctx, kind, recordnum)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return map[domain.Direction]int{}, nil
	}

	header, err := c.store.RecordHeader(ctx, recordnum)
	if err != nil {
		return nil, err
	}
	weigh, err := c.weigher(ctx, kind, header)
	if err != nil {
		return nil, err
	}

	weighted := make(map[domain.Direction]float64)
	directions := make(map[domain.Direction]bool)
	for _, t := range totals {
		w, err := weigh(ctx, t.date, float64(t.total))
		if err != nil {
			return nil, err
		}
		weighted[t.direction] += w
		directions[t.direction] = true
	}

	// Each direction contributes one entry per day, so dividing the entry
	// count by the number of directions recovers the number of days.
	divisor := float64(len(totals) / len(directions))

	aadv := make(map[domain.Direction]int, len(weighted))
	for direction, sum := range weighted {
		aadv[direction] = int(math.Round(sum / divisor))
	}
	return aadv, nil
}

// CalculateAndStore computes a record's AADVs and replaces today's stored
// values with them. Records with no usable days are left untouched.
func (c *Calculator) CalculateAndStore(ctx context.Context, kind domain.CountKind, recordnum int) error {
	aadv, err := c.Calculate(ctx, kind, recordnum)
	if err != nil {
		return err
	}
	if len(aadv) == 0 {
		c.logger.Warn("no full days of data, skipping aadv", "recordnum", recordnum)
		return nil
	}
	return c.store.ReplaceAADV(ctx, recordnum, aadv)
}

// usableDailyTotals collects per-day, per-direction totals for the record's
// full days, minus any days excluded region-wide.
func (c *Calculator) usableDailyTotals(ctx context.Context, kind domain.CountKind, recordnum int) ([]dailyTotal, error) {
	datetimes, err := c.store.CountDatetimes(ctx, kind, recordnum)
	if err != nil {
		return nil, err
	}
	fullDates, err := domain.FullDates(datetimes)
	if err != nil {
		return nil, err
	}

	usable := make(map[string]bool, len(fullDates))
	for _, d := range fullDates {
		usable[dateKey(d)] = true
	}
	excluded, err := c.store.ExcludedDays(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range excluded {
		delete(usable, dateKey(d))
	}

	switch kind {
	case domain.FifteenMinuteBicycleKind, domain.FifteenMinutePedestrianKind:
		return c.inOutDailyTotals(ctx, kind, recordnum, usable)
	default:
		return c.directionalDailyTotals(ctx, kind, recordnum, usable)
	}
}

func (c *Calculator) directionalDailyTotals(ctx context.Context, kind domain.CountKind, recordnum int, usable map[string]bool) ([]dailyTotal, error) {
	rows, err := c.store.DirectionalTotalsByDate(ctx, kind, recordnum)
	if err != nil {
		return nil, err
	}

	var totals []dailyTotal
	overall := make(map[string]int)
	dates := make(map[string]time.Time)
	for _, row := range rows {
		key := dateKey(row.Date)
		if !usable[key] {
			continue
		}
		totals = append(totals, dailyTotal{date: row.Date, direction: row.Direction, total: row.Total})
		overall[key] += row.Total
		dates[key] = row.Date
	}
	for key, total := range overall {
		totals = append(totals, dailyTotal{date: dates[key], total: total})
	}
	return totals, nil
}

func (c *Calculator) inOutDailyTotals(ctx context.Context, kind domain.CountKind, recordnum int, usable map[string]bool) ([]dailyTotal, error) {
	header, err := c.store.RecordHeader(ctx, recordnum)
	if err != nil {
		return nil, err
	}
	if header.InDirection == nil || header.OutDirection == nil {
		return nil, domain.MissingFieldError{Recordnum: recordnum, What: "indir/outdir"}
	}

	rows, err := c.store.InOutTotalsByDate(ctx, kind, recordnum)
	if err != nil {
		return nil, err
	}

	var totals []dailyTotal
	for _, row := range rows {
		if !usable[dateKey(row.Date)] {
			continue
		}
		totals = append(totals,
			dailyTotal{date: row.Date, direction: *header.InDirection, total: row.In},
			dailyTotal{date: row.Date, direction: *header.OutDirection, total: row.Out},
			dailyTotal{date: row.Date, total: row.Total},
		)
	}
	return totals, nil
}

// weighFunc applies all of a count's adjustment factors to one day's total.
type weighFunc func(ctx context.Context, date time.Time, total float64) (float64, error)

// weigher builds the per-day weighting function for a kind of count.
// Vehicle counts are seasonally adjusted by state factor tables keyed off
// the MCD code; axle correction applies only to counts from tube counters
// recording axle hits rather than classified vehicles.
func (c *Calculator) weigher(ctx context.Context, kind domain.CountKind, header store.RecordHeader) (weighFunc, error) {
	equipment, err := c.store.EquipmentFactor(ctx, header.CountType)
	if err != nil {
		return nil, err
	}
	equip := 1.0
	if equipment != nil {
		equip = *equipment
	}

	switch kind {
	case domain.IndividualVehicleKind, domain.FifteenMinuteVehicleKind:
		useAxle := kind == domain.FifteenMinuteVehicleKind
		return func(ctx context.Context, date time.Time, total float64) (float64, error) {
			factors, err := c.store.SeasonalFactors(ctx, header.FC, date)
			if err != nil {
				return 0, err
			}
			season, axle, err := stateFactors(header.MCD, factors, useAxle)
			if err != nil {
				return 0, err
			}
			return total * season * axle * equip, nil
		}, nil
	case domain.FifteenMinuteBicycleKind:
		if header.BikePedGroup == nil {
			return nil, domain.MissingFieldError{Recordnum: header.Recordnum, What: "bikepedgroup"}
		}
		group := *header.BikePedGroup
		return func(ctx context.Context, date time.Time, total float64) (float64, error) {
			factor, err := c.store.BicycleFactor(ctx, group, date)
			if err != nil {
				return 0, err
			}
			return total * factor * equip, nil
		}, nil
	case domain.FifteenMinutePedestrianKind:
		return func(ctx context.Context, date time.Time, total float64) (float64, error) {
			factor, err := c.store.PedestrianFactor(ctx, date.Month())
			if err != nil {
				return 0, err
			}
			return total * factor * equip, nil
		}, nil
	}
	return nil, fmt.Errorf("no aadv weighting for kind %v", kind)
}

// stateFactors picks the state's seasonal and axle factors by the MCD code
// prefix: 42 is Pennsylvania, 34 is New Jersey.
func stateFactors(mcd string, factors store.SeasonalFactors, useAxle bool) (season, axle float64, err error) {
	var seasonPtr, axlePtr *float64
	switch {
	case len(mcd) >= 2 && mcd[:2] == "42":
		seasonPtr, axlePtr = factors.PASeason, factors.PAAxle
	case len(mcd) >= 2 && mcd[:2] == "34":
		seasonPtr, axlePtr = factors.NJSeason, factors.NJAxle
	default:
		return 0, 0, domain.InvalidMCDError{MCD: mcd}
	}
	if seasonPtr == nil {
		return 0, 0, fmt.Errorf("missing seasonal factor for mcd %q", mcd)
	}
	axle = 1.0
	if useAxle {
		if axlePtr == nil {
			return 0, 0, fmt.Errorf("missing axle factor for mcd %q", mcd)
		}
		axle = *axlePtr
	}
	return *seasonPtr, axle, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
