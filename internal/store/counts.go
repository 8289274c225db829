package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

var clacountColumns = []string{
	"recordnum", "countdate", "counttime", "countlane", "total", "ctdir",
	"bikes", "cars_and_tlrs", "ax2_long", "buses", "ax2_6_tire", "ax3_single",
	"ax4_single", "lt_5_ax_double", "ax5_double", "gt_5_ax_double",
	"lt_6_ax_multi", "ax6_multi", "gt_6_ax_multi", "unclassified",
}

// ReplaceVehicleClassCounts removes any previously imported class counts for
// the record and bulk-inserts the given rows in a single transaction.
func (s *Store) ReplaceVehicleClassCounts(ctx context.Context, recordnum int, rows []domain.ClassBucket) error {
	return s.replace(ctx, "tc_clacount", "recordnum", recordnum, clacountColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			c := r.Count
			return []any{
				c.Recordnum, domain.Date(r.Key.Time), r.Key.Time, r.Key.Channel,
				c.Total, c.Direction.String(),
				c.C1, c.C2, c.C3, c.C4, c.C5, c.C6, c.C7,
				c.C8, c.C9, c.C10, c.C11, c.C12, c.C13, c.C15,
			}, nil
		}))
}

var specountColumns = []string{
	"recordnum", "countdate", "counttime", "countlane", "total", "ctdir",
	"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11", "s12", "s13", "s14",
}

// ReplaceSpeedRangeCounts removes any previously imported speed counts for
// the record and bulk-inserts the given rows in a single transaction.
func (s *Store) ReplaceSpeedRangeCounts(ctx context.Context, recordnum int, rows []domain.SpeedBucket) error {
	return s.replace(ctx, "tc_specount", "recordnum", recordnum, specountColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			c := r.Count
			return []any{
				c.Recordnum, domain.Date(r.Key.Time), r.Key.Time, r.Key.Channel,
				c.Total, c.Direction.String(),
				c.S1, c.S2, c.S3, c.S4, c.S5, c.S6, c.S7,
				c.S8, c.S9, c.S10, c.S11, c.S12, c.S13, c.S14,
			}, nil
		}))
}

var fifteenMinVolColumns = []string{
	"recordnum", "countdate", "counttime", "volcount", "cntdir", "countlane",
}

// ReplaceFifteenMinuteVehicles replaces a record's pre-binned volume rows.
func (s *Store) ReplaceFifteenMinuteVehicles(ctx context.Context, recordnum int, rows []domain.FifteenMinuteVehicle) error {
	return s.replace(ctx, "tc_15minvolcount", "recordnum", recordnum, fifteenMinVolColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.Recordnum, domain.Date(r.Time), r.Time, r.Count,
				r.Direction.String(), r.Lane,
			}, nil
		}))
}

var bikeCountColumns = []string{"dvrpcnum", "countdate", "counttime", "total", "incount", "outcount"}

// ReplaceBicycleCounts replaces a record's 15-minute bicycle rows.
func (s *Store) ReplaceBicycleCounts(ctx context.Context, recordnum int, rows []domain.FifteenMinuteBikePed) error {
	return s.replace(ctx, "tc_bikecount", "dvrpcnum", recordnum, bikeCountColumns, bikePedSource(rows))
}

var pedCountColumns = []string{"dvrpcnum", "countdate", "counttime", "total", "in", "out"}

// ReplacePedestrianCounts replaces a record's 15-minute pedestrian rows.
func (s *Store) ReplacePedestrianCounts(ctx context.Context, recordnum int, rows []domain.FifteenMinuteBikePed) error {
	return s.replace(ctx, "tc_pedcount", "dvrpcnum", recordnum, pedCountColumns, bikePedSource(rows))
}

func bikePedSource(rows []domain.FifteenMinuteBikePed) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.Recordnum, domain.Date(r.Time), r.Time, r.Total, r.In, r.Out}, nil
	})
}

var volcountColumns = append([]string{
	"recordnum", "countdate", "setflag", "totalcount", "weather", "cntdir", "countlane",
}, domain.HourColumns[:]...)

// ReplaceVolumePivot replaces a record's pivoted hourly volume rows.
func (s *Store) ReplaceVolumePivot(ctx context.Context, recordnum int, rows []domain.NonNormalVolCount) error {
	return s.replace(ctx, "tc_volcount", "recordnum", recordnum, volcountColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			values := []any{
				r.Key.Recordnum, r.Key.Date, "", r.TotalCount, "",
				r.Key.Direction.String(), r.Key.Lane,
			}
			for _, hour := range r.Hours {
				values = append(values, hour)
			}
			return values, nil
		}))
}

var spesumColumns = append([]string{
	"recordnum", "countdate", "ctdir", "countlane",
}, domain.HourColumns[:]...)

// ReplaceSpeedPivot replaces a record's pivoted hourly average speed rows.
func (s *Store) ReplaceSpeedPivot(ctx context.Context, recordnum int, rows []domain.NonNormalAvgSpeedCount) error {
	return s.replace(ctx, "tc_spesum", "recordnum", recordnum, spesumColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			values := []any{
				r.Key.Recordnum, r.Key.Date, r.Key.Direction.String(), r.Key.Lane,
			}
			for _, hour := range r.Hours {
				values = append(values, hour)
			}
			return values, nil
		}))
}

// replace deletes a record's rows from a table and bulk-inserts replacements
// via COPY, all within one transaction.
func (s *Store) replace(ctx context.Context, table, recordnumField string, recordnum int, columns []string, source pgx.CopyFromSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace of %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, recordnumField)
	if _, err := tx.Exec(ctx, deleteSQL, recordnum); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, source); err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}
	return tx.Commit(ctx)
}
