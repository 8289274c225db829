package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// binnedTable describes where a kind of count stores its time-binned rows.
type binnedTable struct {
	table          string
	recordnumField string
	totalField     string
	dirField       string
	inField        string
	outField       string
}

func tableFor(kind domain.CountKind) (binnedTable, error) {
	switch kind {
	case domain.IndividualVehicleKind:
		return binnedTable{table: "tc_clacount", recordnumField: "recordnum", totalField: "total", dirField: "ctdir"}, nil
	case domain.FifteenMinuteVehicleKind:
		return binnedTable{table: "tc_15minvolcount", recordnumField: "recordnum", totalField: "volcount", dirField: "cntdir"}, nil
	case domain.FifteenMinuteBicycleKind:
		return binnedTable{table: "tc_bikecount", recordnumField: "dvrpcnum", totalField: "total", inField: "incount", outField: "outcount"}, nil
	case domain.FifteenMinutePedestrianKind:
		return binnedTable{table: "tc_pedcount", recordnumField: "dvrpcnum", totalField: "total", inField: "in", outField: "out"}, nil
	}
	return binnedTable{}, fmt.Errorf("no count table for kind %v", kind)
}

// CountDatetimes returns the datetimes of a record's binned rows in
// chronological order, the input to full-day detection.
func (s *Store) CountDatetimes(ctx context.Context, kind domain.CountKind, recordnum int) ([]time.Time, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT counttime FROM %s WHERE %s = $1 ORDER BY counttime ASC",
		t.table, t.recordnumField)
	rows, err := s.pool.Query(ctx, query, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datetimes []time.Time
	for rows.Next() {
		var dt time.Time
		if err := rows.Scan(&dt); err != nil {
			return nil, err
		}
		datetimes = append(datetimes, dt)
	}
	return datetimes, rows.Err()
}

// DailyTotal is one day's total volume for one direction.
type DailyTotal struct {
	Date      time.Time
	Direction domain.Direction
	Total     int
}

// DirectionalTotalsByDate sums a vehicle count's volume per date and
// direction. Only valid for kinds whose rows carry a direction field.
func (s *Store) DirectionalTotalsByDate(ctx context.Context, kind domain.CountKind, recordnum int) ([]DailyTotal, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if t.dirField == "" {
		return nil, fmt.Errorf("kind %v has no direction field", kind)
	}
	query := fmt.Sprintf(
		"SELECT countdate, sum(%s), %s FROM %s WHERE %s = $1 GROUP BY countdate, %s",
		t.totalField, t.dirField, t.table, t.recordnumField, t.dirField)
	rows, err := s.pool.Query(ctx, query, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var dt DailyTotal
		var dir string
		if err := rows.Scan(&dt.Date, &dt.Total, &dir); err != nil {
			return nil, err
		}
		if dt.Direction, err = domain.ParseDirection(dir); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

// InOutTotal is one day's totals for a count whose rows hold both travel
// directions (bicycle and pedestrian counts).
type InOutTotal struct {
	Date  time.Time
	Total int
	In    int
	Out   int
}

// InOutTotalsByDate sums a bicycle or pedestrian count's volume per date.
func (s *Store) InOutTotalsByDate(ctx context.Context, kind domain.CountKind, recordnum int) ([]InOutTotal, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if t.inField == "" {
		return nil, fmt.Errorf("kind %v has no in/out fields", kind)
	}
	query := fmt.Sprintf(
		`SELECT countdate, sum(%s), coalesce(sum("%s"), 0), coalesce(sum("%s"), 0) FROM %s WHERE %s = $1 GROUP BY countdate`,
		t.totalField, t.inField, t.outField, t.table, t.recordnumField)
	rows, err := s.pool.Query(ctx, query, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []InOutTotal
	for rows.Next() {
		var dt InOutTotal
		if err := rows.Scan(&dt.Date, &dt.Total, &dt.In, &dt.Out); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

// SeasonalFactors holds both states' seasonal adjustment factors for one
// functional classification, year, month, and day of week. Fields are nil
// where the factor table has no value for that state.
type SeasonalFactors struct {
	PASeason *float64
	NJSeason *float64
	PAAxle   *float64
	NJAxle   *float64
}

const seasonalFactorsSQL = `
	SELECT pafactor, njfactor, paaxle, njaxle
	FROM tc_factor
	WHERE fc = $1 AND year = $2 AND month = $3 AND dayofweek = $4
`

// SeasonalFactors looks up the tc_factor row for a functional classification
// and date. Day of week is numbered 1-7 from Sunday, per regional convention.
func (s *Store) SeasonalFactors(ctx context.Context, fc int, date time.Time) (SeasonalFactors, error) {
	var f SeasonalFactors
	err := s.pool.QueryRow(ctx, seasonalFactorsSQL,
		fc, date.Year(), int(date.Month()), dayOfWeekFromSunday(date)).
		Scan(&f.PASeason, &f.NJSeason, &f.PAAxle, &f.NJAxle)
	if errors.Is(err, pgx.ErrNoRows) {
		return f, fmt.Errorf("no tc_factor row for fc %d on %s", fc, date.Format("2006-01-02"))
	}
	return f, err
}

const bicycleFactorSQL = `
	SELECT factor
	FROM tc_bikefactor
	WHERE type = $1 AND year = $2 AND monthnum = $3 AND dayofweeknum = $4
`

// BicycleFactor looks up the seasonal factor for a bicycle count group and date.
func (s *Store) BicycleFactor(ctx context.Context, group string, date time.Time) (float64, error) {
	var factor float64
	err := s.pool.QueryRow(ctx, bicycleFactorSQL,
		group, date.Year(), int(date.Month()), dayOfWeekFromSunday(date)).Scan(&factor)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no tc_bikefactor row for group %q on %s", group, date.Format("2006-01-02"))
	}
	return factor, err
}

// PedestrianFactor looks up the seasonal factor for pedestrian counts, which
// varies by month only.
func (s *Store) PedestrianFactor(ctx context.Context, month time.Month) (float64, error) {
	var factor float64
	err := s.pool.QueryRow(ctx,
		"SELECT factor FROM tc_pedfactor WHERE month = $1", int(month)).Scan(&factor)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no tc_pedfactor row for month %d", month)
	}
	return factor, err
}

// EquipmentFactor returns the adjustment factor for the counting equipment
// used by a count type, or nil when the type has none.
func (s *Store) EquipmentFactor(ctx context.Context, countType string) (*float64, error) {
	var factor *float64
	err := s.pool.QueryRow(ctx,
		"SELECT factor2 FROM tc_counttype WHERE counttype = $1", countType).Scan(&factor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no tc_counttype row for type %q", countType)
	}
	return factor, err
}

// ExcludedDays returns the days that regional staff have flagged to leave
// out of all annual average calculations.
func (s *Store) ExcludedDays(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, "SELECT excluded_day FROM aadv_excluded_days")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// ReplaceAADV removes any annual average daily volumes already calculated
// today for the record and inserts the new set, one row per direction plus
// one overall row with a NULL direction. The overall value is also copied
// onto the count's header row.
func (s *Store) ReplaceAADV(ctx context.Context, recordnum int, values map[domain.Direction]int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin aadv replace: %w", err)
	}
	defer tx.Rollback(ctx)

	today := domain.Today()
	if _, err := tx.Exec(ctx,
		"DELETE FROM aadv WHERE recordnum = $1 AND date_calculated = $2",
		recordnum, today); err != nil {
		return fmt.Errorf("delete aadv: %w", err)
	}

	for direction, value := range values {
		var dir *string
		if direction != "" {
			d := direction.String()
			dir = &d
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO aadv (recordnum, aadv, direction, date_calculated) VALUES ($1, $2, $3, $4)",
			recordnum, value, dir, today); err != nil {
			return fmt.Errorf("insert aadv: %w", err)
		}
		if dir == nil {
			if _, err := tx.Exec(ctx,
				"UPDATE tc_header SET aadv = $1 WHERE recordnum = $2",
				value, recordnum); err != nil {
				return fmt.Errorf("update header aadv: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}

// DVRPC numbers days of the week 1-7 starting from Sunday.
func dayOfWeekFromSunday(t time.Time) int {
	return int(t.Weekday()) + 1
}
