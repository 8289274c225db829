package domain

import (
	"sort"
	"time"
)

// DetermineDate picks the date used for a count's annual-average reporting:
// the chronologically first date is dropped (it is usually a partial day) and
// the earliest remaining weekday (Monday through Friday) is returned. The
// second return value is false when the input has fewer than two distinct
// dates or no weekday remains.
func DetermineDate(dates []time.Time) (time.Time, bool) {
	unique := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		unique[Date(d)] = true
	}
	if len(unique) < 2 {
		return time.Time{}, false
	}

	sorted := make([]time.Time, 0, len(unique))
	for d := range unique {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, d := range sorted[1:] {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return d, true
		}
	}
	return time.Time{}, false
}
