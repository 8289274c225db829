package domain

import (
	"log/slog"
	"sort"
	"time"
)

// BinnedCountKey identifies one bucketed histogram row: the start of a time
// bucket and the channel the vehicles were observed on. Keys computed from
// observed events and keys enumerated synthetically for empty buckets must
// converge to the same row.
type BinnedCountKey struct {
	Time    time.Time
	Channel int
}

// VehicleClassCount is a per-bucket histogram of FHWA vehicle classes.
// Unclassified vehicles (class 0, 14, or 15) are counted in both C15 and C2
// while Total increases by one; see the package documentation.
type VehicleClassCount struct {
	Recordnum int
	Direction Direction
	C1        int
	C2        int
	C3        int
	C4        int
	C5        int
	C6        int
	C7        int
	C8        int
	C9        int
	C10       int
	C11       int
	C12       int
	C13       int
	C15       int
	Total     int
}

// NewVehicleClassCount starts a zeroed accumulator for a record and direction.
func NewVehicleClassCount(recordnum int, direction Direction) *VehicleClassCount {
	return &VehicleClassCount{Recordnum: recordnum, Direction: direction}
}

// Insert counts one vehicle of the given class.
func (c *VehicleClassCount) Insert(class int) error {
	switch class {
	case 1:
		c.C1++
	case 2:
		c.C2++
	case 3:
		c.C3++
	case 4:
		c.C4++
	case 5:
		c.C5++
	case 6:
		c.C6++
	case 7:
		c.C7++
	case 8:
		c.C8++
	case 9:
		c.C9++
	case 10:
		c.C10++
	case 11:
		c.C11++
	case 12:
		c.C12++
	case 13:
		c.C13++
	case 0, 14, 15:
		// Legacy convention: unclassified vehicles also count as passenger cars.
		c.C2++
		c.C15++
	default:
		return BadVehicleClassError{Class: class}
	}
	c.Total++
	return nil
}

// SpeedRangeCount is a per-bucket histogram of speeds in 14 bands: at or
// under 15 mph (including negative readings), then 5-mph bands up to 75 mph,
// then everything faster.
type SpeedRangeCount struct {
	Recordnum int
	Direction Direction
	S1        int
	S2        int
	S3        int
	S4        int
	S5        int
	S6        int
	S7        int
	S8        int
	S9        int
	S10       int
	S11       int
	S12       int
	S13       int
	S14       int
	Total     int
}

// NewSpeedRangeCount starts a zeroed accumulator for a record and direction.
func NewSpeedRangeCount(recordnum int, direction Direction) *SpeedRangeCount {
	return &SpeedRangeCount{Recordnum: recordnum, Direction: direction}
}

// Insert counts one vehicle at the given speed.
func (c *SpeedRangeCount) Insert(speed float64) {
	switch {
	case speed <= 15.0:
		c.S1++
	case speed <= 20.0:
		c.S2++
	case speed <= 25.0:
		c.S3++
	case speed <= 30.0:
		c.S4++
	case speed <= 35.0:
		c.S5++
	case speed <= 40.0:
		c.S6++
	case speed <= 45.0:
		c.S7++
	case speed <= 50.0:
		c.S8++
	case speed <= 55.0:
		c.S9++
	case speed <= 60.0:
		c.S10++
	case speed <= 65.0:
		c.S11++
	case speed <= 70.0:
		c.S12++
	case speed <= 75.0:
		c.S13++
	default:
		c.S14++
	}
	c.Total++
}

// ClassBucket is one row of the binned vehicle class table.
type ClassBucket struct {
	Key   BinnedCountKey
	Count VehicleClassCount
}

// SpeedBucket is one row of the binned speed range table.
type SpeedBucket struct {
	Key   BinnedCountKey
	Count SpeedRangeCount
}

// BinClassAndSpeed accumulates individual vehicle events into 15-minute
// class and speed histograms keyed by bucket and channel. Events on a channel
// the metadata has no direction for are logged and skipped.
func BinClassAndSpeed(meta Metadata, events []VehicleEvent, logger *slog.Logger) (map[BinnedCountKey]*VehicleClassCount, map[BinnedCountKey]*SpeedRangeCount) {
	classCounts := make(map[BinnedCountKey]*VehicleClassCount)
	speedCounts := make(map[BinnedCountKey]*SpeedRangeCount)

	for _, event := range events {
		direction, ok := meta.Directions.ByChannel(event.Channel)
		if !ok {
			logger.Error("unable to determine direction from channel",
				"recordnum", meta.Recordnum, "channel", event.Channel)
			continue
		}

		key := BinnedCountKey{
			Time:    BinTime(event.Time, FifteenMinute),
			Channel: event.Channel,
		}

		cc, ok := classCounts[key]
		if !ok {
			cc = NewVehicleClassCount(meta.Recordnum, direction)
			classCounts[key] = cc
		}
		if err := cc.Insert(event.Class); err != nil {
			logger.Error("skipping event", "recordnum", meta.Recordnum, "error", err)
			continue
		}

		sc, ok := speedCounts[key]
		if !ok {
			sc = NewSpeedRangeCount(meta.Recordnum, direction)
			speedCounts[key] = sc
		}
		sc.Insert(event.Speed)
	}

	return classCounts, speedCounts
}

// ClassBuckets converts accumulated class counts to an ordered row list:
// every enumerated bucket in the observation window gets a row (zero-valued
// where no vehicles were observed), rows are sorted by bucket then channel,
// and the first and last bucket of each channel are dropped as partial.
func ClassBuckets(meta Metadata, counts map[BinnedCountKey]*VehicleClassCount) []ClassBucket {
	keys := fullKeyRange(counts)
	nchannels := channelCount(counts)

	rows := make([]ClassBucket, 0, len(keys))
	for _, key := range keys {
		if c, ok := counts[key]; ok {
			rows = append(rows, ClassBucket{Key: key, Count: *c})
			continue
		}
		direction, _ := meta.Directions.ByChannel(key.Channel)
		rows = append(rows, ClassBucket{
			Key:   key,
			Count: *NewVehicleClassCount(meta.Recordnum, direction),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return lessByKey(rows[i].Key, rows[j].Key)
	})

	return trimEdges(rows, nchannels)
}

// SpeedBuckets converts accumulated speed counts to an ordered row list,
// with the same zero-fill, ordering, and edge trimming as ClassBuckets.
func SpeedBuckets(meta Metadata, counts map[BinnedCountKey]*SpeedRangeCount) []SpeedBucket {
	keys := fullKeyRange(counts)
	nchannels := channelCount(counts)

	rows := make([]SpeedBucket, 0, len(keys))
	for _, key := range keys {
		if c, ok := counts[key]; ok {
			rows = append(rows, SpeedBucket{Key: key, Count: *c})
			continue
		}
		direction, _ := meta.Directions.ByChannel(key.Channel)
		rows = append(rows, SpeedBucket{
			Key:   key,
			Count: *NewSpeedRangeCount(meta.Recordnum, direction),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return lessByKey(rows[i].Key, rows[j].Key)
	})

	return trimEdges(rows, nchannels)
}

func lessByKey(a, b BinnedCountKey) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Channel < b.Channel
}

// trimEdges drops n rows from each end of the sorted row list, one per
// channel, removing the partial first and last bucket of every channel.
func trimEdges[T any](rows []T, n int) []T {
	if len(rows) <= 2*n {
		return nil
	}
	return rows[n : len(rows)-n]
}

// fullKeyRange enumerates every (bucket, channel) key between the first and
// last observed bucket, for all observed channels.
func fullKeyRange[V any](counts map[BinnedCountKey]V) []BinnedCountKey {
	if len(counts) == 0 {
		return nil
	}

	var first, last time.Time
	channels := map[int]bool{}
	for key := range counts {
		if first.IsZero() || key.Time.Before(first) {
			first = key.Time
		}
		if key.Time.After(last) {
			last = key.Time
		}
		channels[key.Channel] = true
	}

	var keys []BinnedCountKey
	for _, t := range TimeBins(first, last, FifteenMinute) {
		for channel := range channels {
			keys = append(keys, BinnedCountKey{Time: t, Channel: channel})
		}
	}
	return keys
}

func channelCount[V any](counts map[BinnedCountKey]V) int {
	channels := map[int]bool{}
	for key := range counts {
		channels[key.Channel] = true
	}
	return len(channels)
}
