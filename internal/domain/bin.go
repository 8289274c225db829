package domain

import "time"

// Interval is the fixed width of a time bucket.
type Interval int

const (
	FifteenMinute Interval = iota
	Hourly
)

// Duration returns the bucket width.
func (i Interval) Duration() time.Duration {
	if i == Hourly {
		return time.Hour
	}
	return 15 * time.Minute
}

// LastBinMinute is the minute of the last bucket of an hour: 45 for
// 15-minute data, 0 for hourly.
func (i Interval) LastBinMinute() int {
	if i == Hourly {
		return 0
	}
	return 45
}

// BinTime maps a timestamp to the start of its containing bucket: seconds are
// zeroed and the minute is snapped down to the bucket boundary. It is
// idempotent, so a bucket never changes membership as more data arrives.
func BinTime(t time.Time, interval Interval) time.Time {
	minute := 0
	if interval == FifteenMinute {
		minute = t.Minute() / 15 * 15
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// TimeBins enumerates every bucket start from BinTime(first) through
// BinTime(last) inclusive, stepping by the interval width. Buckets with zero
// observations are included; callers use this to distinguish "no traffic"
// from "not processed".
func TimeBins(first, last time.Time, interval Interval) []time.Time {
	start := BinTime(first, interval)
	end := BinTime(last, interval)

	var bins []time.Time
	for t := start; !t.After(end); t = t.Add(interval.Duration()) {
		bins = append(bins, t)
	}
	return bins
}
