package domain

import (
	"log/slog"
	"sort"
	"time"
)

// HourColumns names the 24 hour-of-day columns of the pivoted tables in
// order, index 0 holding midnight (am12) and index 23 holding 11 PM (pm11).
var HourColumns = [24]string{
	"am12", "am1", "am2", "am3", "am4", "am5", "am6", "am7", "am8", "am9", "am10", "am11",
	"pm12", "pm1", "pm2", "pm3", "pm4", "pm5", "pm6", "pm7", "pm8", "pm9", "pm10", "pm11",
}

// NonNormalCountKey identifies one pivoted hourly row.
type NonNormalCountKey struct {
	Recordnum int
	Date      time.Time
	Direction Direction
	Lane      int
}

// NonNormalVolCount is a pivoted volume row with one column per hour of day.
// Hour slots are nil, not zero, for hours with no data, because counts rarely
// run exactly midnight to midnight.
type NonNormalVolCount struct {
	Key        NonNormalCountKey
	TotalCount *int
	Hours      [24]*int
}

// NonNormalAvgSpeedCount is a pivoted row of average speed per hour of day.
type NonNormalAvgSpeedCount struct {
	Key   NonNormalCountKey
	Hours [24]*float64
}

// HourlyCount is one hour-truncated aggregate row read back from a stored
// count table.
type HourlyCount struct {
	Recordnum int
	Time      time.Time
	Count     int
	Direction Direction
	Lane      int
}

// BuildVolumePivot folds individual vehicle events into pivoted hourly volume
// rows. Events in the first and last calendar hour of the overall observation
// window are excluded, as those hours are unlikely to be complete.
func BuildVolumePivot(meta Metadata, events []VehicleEvent, logger *slog.Logger) []NonNormalVolCount {
	if len(events) == 0 {
		return nil
	}

	firstHour, lastHour := edgeHours(events)

	pivots := make(map[NonNormalCountKey]*NonNormalVolCount)
	for _, event := range events {
		hour := BinTime(event.Time, Hourly)
		if hour.Equal(firstHour) || hour.Equal(lastHour) {
			continue
		}

		direction, ok := meta.Directions.ByChannel(event.Channel)
		if !ok {
			logger.Error("unable to determine direction from channel",
				"recordnum", meta.Recordnum, "channel", event.Channel)
			continue
		}

		key := NonNormalCountKey{
			Recordnum: meta.Recordnum,
			Date:      Date(event.Time),
			Direction: direction,
			Lane:      event.Channel,
		}
		row, ok := pivots[key]
		if !ok {
			row = &NonNormalVolCount{Key: key}
			pivots[key] = row
		}
		incr(&row.TotalCount)
		incr(&row.Hours[event.Time.Hour()])
	}

	return sortedVolRows(pivots)
}

// BuildSpeedPivot folds individual vehicle events into pivoted rows of
// average speed per hour, with the same edge-hour exclusion as
// BuildVolumePivot. An hour's slot stays nil when it saw no vehicles.
func BuildSpeedPivot(meta Metadata, events []VehicleEvent, logger *slog.Logger) []NonNormalAvgSpeedCount {
	if len(events) == 0 {
		return nil
	}

	firstHour, lastHour := edgeHours(events)

	speeds := make(map[NonNormalCountKey]*[24][]float64)
	for _, event := range events {
		hour := BinTime(event.Time, Hourly)
		if hour.Equal(firstHour) || hour.Equal(lastHour) {
			continue
		}

		direction, ok := meta.Directions.ByChannel(event.Channel)
		if !ok {
			logger.Error("unable to determine direction from channel",
				"recordnum", meta.Recordnum, "channel", event.Channel)
			continue
		}

		key := NonNormalCountKey{
			Recordnum: meta.Recordnum,
			Date:      Date(event.Time),
			Direction: direction,
			Lane:      event.Channel,
		}
		perHour, ok := speeds[key]
		if !ok {
			perHour = &[24][]float64{}
			speeds[key] = perHour
		}
		perHour[event.Time.Hour()] = append(perHour[event.Time.Hour()], event.Speed)
	}

	rows := make([]NonNormalAvgSpeedCount, 0, len(speeds))
	for key, perHour := range speeds {
		row := NonNormalAvgSpeedCount{Key: key}
		for hour, observed := range perHour {
			if len(observed) == 0 {
				continue
			}
			sum := 0.0
			for _, speed := range observed {
				sum += speed
			}
			avg := sum / float64(len(observed))
			row.Hours[hour] = &avg
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return lessByPivotKey(rows[i].Key, rows[j].Key)
	})
	return rows
}

// PivotHourlyCounts builds pivoted volume rows from hour-truncated aggregate
// rows read back from a stored count table. The stored rows were already
// trimmed at insert time, so no edge exclusion applies here.
func PivotHourlyCounts(counts []HourlyCount) []NonNormalVolCount {
	pivots := make(map[NonNormalCountKey]*NonNormalVolCount)
	for _, count := range counts {
		key := NonNormalCountKey{
			Recordnum: count.Recordnum,
			Date:      Date(count.Time),
			Direction: count.Direction,
			Lane:      count.Lane,
		}
		row, ok := pivots[key]
		if !ok {
			row = &NonNormalVolCount{Key: key}
			pivots[key] = row
		}
		add(&row.TotalCount, count.Count)
		volume := count.Count
		row.Hours[count.Time.Hour()] = &volume
	}
	return sortedVolRows(pivots)
}

// edgeHours returns the first and last observed calendar hour of the events.
func edgeHours(events []VehicleEvent) (time.Time, time.Time) {
	first, last := events[0].Time, events[0].Time
	for _, event := range events[1:] {
		if event.Time.Before(first) {
			first = event.Time
		}
		if event.Time.After(last) {
			last = event.Time
		}
	}
	return BinTime(first, Hourly), BinTime(last, Hourly)
}

func sortedVolRows(pivots map[NonNormalCountKey]*NonNormalVolCount) []NonNormalVolCount {
	rows := make([]NonNormalVolCount, 0, len(pivots))
	for _, row := range pivots {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return lessByPivotKey(rows[i].Key, rows[j].Key)
	})
	return rows
}

func lessByPivotKey(a, b NonNormalCountKey) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Direction != b.Direction {
		return a.Direction < b.Direction
	}
	return a.Lane < b.Lane
}

func incr(slot **int) {
	add(slot, 1)
}

func add(slot **int, n int) {
	if *slot == nil {
		v := n
		*slot = &v
		return
	}
	**slot += n
}
