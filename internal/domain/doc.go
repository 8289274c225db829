// Package domain models DVRPC traffic count data and the aggregation rules
// applied to it.
//
// # Data Source
//
// Counts come from automatic traffic recorders placed on roads in the DVRPC
// region. Counter vendor software exports each count as a CSV file, either as
// one row per observed vehicle (date, time, channel, class, speed) or as
// pre-binned 15-minute volumes. Files are dropped into a directory named for
// the kind of count they contain and picked up by the import driver.
//
// # Filename Convention
//
// Count metadata is encoded in the filename, fields separated by dashes:
//
//	technician-recordnum-directions-counterid-speedlimit
//	e.g. rc-166905-ew-40972-35.txt
//	means: technician "rc", record 166905, channel 1 counting eastbound and
//	channel 2 westbound, counter 40972, posted speed limit 35 mph.
//	Direction codes: two letters for two channels (ns, sn, ew, we, nn, ss,
//	ee, ww), one letter for a single channel (n, s, e, w). A speed limit of
//	"na" means none was recorded.
//
// # Vehicle Classification
//
// Classes 1-13 are the FHWA vehicle classification scheme
// (https://www.fhwa.dot.gov/policyinformation/vehclass.cfm). Class 14 is
// unused by FHWA; the counters emit 0, 14, or 15 for vehicles they could not
// classify. Unclassified vehicles are recorded in the unclassified bucket
// (c15) and ALSO folded into the passenger-car bucket (c2), while the row
// total only increases by one. The double-count is a long-standing convention
// of the legacy database and downstream reports depend on it.
//
// # Speed Ranges
//
// Speeds are binned into 14 bands: everything at or below 15 mph (including
// negative readings the counters sometimes emit, and -0.0) falls in the first
// band, then 5-mph bands up to 75 mph, with everything above 75 mph in the
// last band.
//
// # Time Binning and Full Days
//
// Raw observations are binned into 15-minute or hourly buckets keyed by
// bucket start time and channel. Because counters are rarely started and
// stopped exactly at midnight, the first and last bucket of a count (per
// channel) are treated as partial and dropped, and only calendar days with a
// complete set of intervals ("full days") feed the AADV average. The hourly
// pivot tables (one column per hour of day, am12 through pm11) use nil, not
// zero, for hours with no data for the same reason.
//
// # AADV
//
// Annual Average Daily Volume weights each full day's total by seasonal,
// axle, and equipment correction factors and averages the result per
// direction, plus an aggregate with no direction. The state portion of the
// record's MCD code selects the factor columns: 42 is Pennsylvania, 34 is
// New Jersey.
package domain
