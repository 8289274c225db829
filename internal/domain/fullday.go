package domain

import "time"

// Date truncates a timestamp to midnight, keeping its location.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FullDates determines which calendar days of a count have a complete set of
// time buckets, given the count's datetimes in ascending order.
//
// Counters are rarely started or stopped exactly at midnight, so the first
// and last observed days are usually partial. The first observed date is
// advanced by one day unless the count starts at midnight; the last observed
// date is receded by one day unless the count runs through the last bucket of
// the day. The bucket granularity is detected from the number of rows on the
// candidate first full day: 24 or 48 rows (one or two directions) means
// hourly, 96 or 192 means 15-minute. Any other number is ambiguous and
// returns ErrBadIntervalCount.
//
// The result is the inclusive contiguous date range between the first and
// last full day, empty when the count has no full day.
func FullDates(datetimes []time.Time) ([]time.Time, error) {
	if len(datetimes) == 0 {
		return nil, nil
	}

	first := datetimes[0]
	last := datetimes[len(datetimes)-1]

	firstFull := Date(first)
	if first.Hour() != 0 {
		firstFull = firstFull.AddDate(0, 0, 1)
	}

	rowsOnFirstFull := 0
	for _, dt := range datetimes {
		if Date(dt).Equal(firstFull) {
			rowsOnFirstFull++
		}
	}

	var lastBinMinute int
	switch rowsOnFirstFull {
	case 24, 48:
		lastBinMinute = Hourly.LastBinMinute()
	case 96, 192:
		lastBinMinute = FifteenMinute.LastBinMinute()
	default:
		return nil, ErrBadIntervalCount
	}

	lastFull := Date(last)
	if last.Hour() != 23 || last.Minute() != lastBinMinute {
		lastFull = lastFull.AddDate(0, 0, -1)
	}

	var dates []time.Time
	for d := firstFull; !d.After(lastFull); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}
