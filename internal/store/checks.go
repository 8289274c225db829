package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// ClassTotals are the sums used to check class count plausibility.
type ClassTotals struct {
	C2    int
	C15   int
	Total int
}

const classTotalsSQL = `
	SELECT coalesce(sum(cars_and_tlrs), 0), coalesce(sum(unclassified), 0), coalesce(sum(total), 0)
	FROM tc_clacount
	WHERE recordnum = $1
`

// ClassTotals sums a record's passenger car, unclassified, and overall counts.
func (s *Store) ClassTotals(ctx context.Context, recordnum int) (ClassTotals, error) {
	var t ClassTotals
	err := s.pool.QueryRow(ctx, classTotalsSQL, recordnum).Scan(&t.C2, &t.C15, &t.Total)
	return t, err
}

// HourlyVolumes sums a record's binned rows per hour, direction, and lane.
// Used both to pivot pre-binned volume counts and to scan for empty hours.
func (s *Store) HourlyVolumes(ctx context.Context, kind domain.CountKind, recordnum int) ([]domain.HourlyCount, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if t.dirField == "" {
		return nil, fmt.Errorf("kind %v has no direction field", kind)
	}
	query := fmt.Sprintf(
		`SELECT date_trunc('hour', counttime), %s, countlane, sum(%s)
		FROM %s WHERE %s = $1
		GROUP BY date_trunc('hour', counttime), %s, countlane
		ORDER BY %s, countlane, date_trunc('hour', counttime)`,
		t.dirField, t.totalField, t.table, t.recordnumField, t.dirField, t.dirField)
	rows, err := s.pool.Query(ctx, query, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.HourlyCount
	for rows.Next() {
		var hc domain.HourlyCount
		var dir string
		if err := rows.Scan(&hc.Time, &dir, &hc.Lane, &hc.Count); err != nil {
			return nil, err
		}
		if hc.Direction, err = domain.ParseDirection(dir); err != nil {
			return nil, err
		}
		hc.Recordnum = recordnum
		counts = append(counts, hc)
	}
	return counts, rows.Err()
}

// HourlyInOutVolume is one hour's bicycle or pedestrian volume.
type HourlyInOutVolume struct {
	Time  time.Time
	Total int
	In    int
	Out   int
}

// HourlyInOutVolumes sums a bicycle or pedestrian record's rows per hour.
func (s *Store) HourlyInOutVolumes(ctx context.Context, kind domain.CountKind, recordnum int) ([]HourlyInOutVolume, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if t.inField == "" {
		return nil, fmt.Errorf("kind %v has no in/out fields", kind)
	}
	query := fmt.Sprintf(
		`SELECT date_trunc('hour', counttime), sum(%s), coalesce(sum("%s"), 0), coalesce(sum("%s"), 0)
		FROM %s WHERE %s = $1
		GROUP BY date_trunc('hour', counttime)
		ORDER BY date_trunc('hour', counttime)`,
		t.totalField, t.inField, t.outField, t.table, t.recordnumField)
	rows, err := s.pool.Query(ctx, query, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []HourlyInOutVolume
	for rows.Next() {
		var v HourlyInOutVolume
		if err := rows.Scan(&v.Time, &v.Total, &v.In, &v.Out); err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, rows.Err()
}

// TimedTotal is one 15-minute bin's total volume.
type TimedTotal struct {
	Time  time.Time
	Total int
}

const bicycleBinsSQL = `
	SELECT counttime, total
	FROM tc_bikecount
	WHERE dvrpcnum = $1
	ORDER BY counttime
`

// BicycleBins returns a bicycle record's 15-minute totals in time order.
func (s *Store) BicycleBins(ctx context.Context, recordnum int) ([]TimedTotal, error) {
	rows, err := s.pool.Query(ctx, bicycleBinsSQL, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bins []TimedTotal
	for rows.Next() {
		var b TimedTotal
		if err := rows.Scan(&b.Time, &b.Total); err != nil {
			return nil, err
		}
		bins = append(bins, b)
	}
	return bins, rows.Err()
}
