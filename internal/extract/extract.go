package extract

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// Header rows identifying the kind of data in a counter export, compared
// after stripping quotes and spaces.
const (
	individualVehicleHeader    = "Veh.No.,Date,Time,Channel,Class,Speed"
	fifteenMinuteVehicleHeader = "Number,Date,Time,Channel1"
)

// Counter exports repeat metadata before the header row; the header is always
// within the first few lines, so scanning 50 is more than enough.
const headerScanLimit = 50

// KindFromHeader determines the count kind from a file's header row and
// returns the number of rows before the data starts.
func KindFromHeader(r io.Reader) (domain.CountKind, int, error) {
	scanner := bufio.NewScanner(r)
	row := 0
	for scanner.Scan() && row < headerScanLimit {
		row++
		line := strings.NewReplacer(`"`, "", " ", "").Replace(scanner.Text())
		if strings.Contains(line, fifteenMinuteVehicleHeader) {
			return domain.FifteenMinuteVehicleKind, row, nil
		}
		if strings.Contains(line, individualVehicleHeader) {
			return domain.IndividualVehicleKind, row, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("no recognized header row")
}

// VerifyKind checks that a file's location and its header agree about the
// kind of count it holds. Bicycle and pedestrian exports carry no header
// fingerprint and are identified by location alone.
func VerifyKind(path string, fromDir domain.CountKind) error {
	if fromDir == domain.FifteenMinuteBicycleKind || fromDir == domain.FifteenMinutePedestrianKind {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fromHeader, _, err := KindFromHeader(f)
	if err != nil {
		return err
	}
	if fromHeader != fromDir {
		return fmt.Errorf("count kind mismatch: directory says %s, header says %s", fromDir, fromHeader)
	}
	return nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true
	return rdr
}

// dataRows reads all CSV rows after the non-data preamble.
func dataRows(r io.Reader, skip int) ([][]string, error) {
	rows, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if skip >= len(rows) {
		return nil, nil
	}
	return rows[skip:], nil
}

// VehicleEvents reads individual vehicle records: one row per observed
// vehicle with date, 12-hour time, channel, class, and speed columns. Rows
// with an invalid class are logged and skipped.
func VehicleEvents(r io.Reader, skip int, logger *slog.Logger) ([]domain.VehicleEvent, error) {
	rows, err := dataRows(r, skip)
	if err != nil {
		return nil, err
	}

	var events []domain.VehicleEvent
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("vehicle row has %d columns, want 6", len(row))
		}
		ts, err := parseDateAndTime(row[1], row[2], "3:04:05 PM")
		if err != nil {
			return nil, err
		}
		channel, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("parse channel: %w", err)
		}
		class, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("parse class: %w", err)
		}
		speed, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("parse speed: %w", err)
		}

		event, err := domain.NewVehicleEvent(ts, channel, class, speed)
		if err != nil {
			logger.Error("skipping row", "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// FifteenMinuteVehicles reads pre-binned volume records. Each row holds the
// interval start and one count column per direction in the metadata.
func FifteenMinuteVehicles(r io.Reader, skip int, meta domain.Metadata) ([]domain.FifteenMinuteVehicle, error) {
	rows, err := dataRows(r, skip)
	if err != nil {
		return nil, err
	}

	var counts []domain.FifteenMinuteVehicle
	for _, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("volume row has %d columns, want at least 4", len(row))
		}
		ts, err := parseDateAndTime(row[1], row[2], "3:04 PM")
		if err != nil {
			return nil, err
		}

		for lane := 1; lane <= 3; lane++ {
			direction, ok := meta.Directions.ByChannel(lane)
			if !ok {
				break
			}
			col := lane + 2
			if col >= len(row) {
				return nil, fmt.Errorf("no count column for lane %d", lane)
			}
			count, err := strconv.Atoi(row[col])
			if err != nil {
				return nil, fmt.Errorf("parse count: %w", err)
			}
			counts = append(counts, domain.FifteenMinuteVehicle{
				Recordnum: meta.Recordnum,
				Time:      ts,
				Count:     count,
				Direction: direction,
				Lane:      lane,
			})
		}
	}
	return counts, nil
}

// BikePeds reads pre-binned bicycle or pedestrian records. Single-direction
// counts carry only a total; bidirectional counts also carry in and out
// columns.
func BikePeds(r io.Reader, skip int, meta domain.Metadata) ([]domain.FifteenMinuteBikePed, error) {
	rows, err := dataRows(r, skip)
	if err != nil {
		return nil, err
	}

	bidirectional := meta.Directions.Direction2 != ""

	var counts []domain.FifteenMinuteBikePed
	for _, row := range rows {
		want := 2
		if bidirectional {
			want = 4
		}
		if len(row) < want {
			return nil, fmt.Errorf("row has %d columns, want %d", len(row), want)
		}

		ts, err := time.ParseInLocation("2006-01-02 15:04:05", row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse datetime: %w", err)
		}
		total, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}

		count := domain.FifteenMinuteBikePed{
			Recordnum: meta.Recordnum,
			Time:      ts,
			Total:     total,
		}
		if bidirectional {
			in, err := strconv.Atoi(row[2])
			if err != nil {
				return nil, fmt.Errorf("parse incount: %w", err)
			}
			out, err := strconv.Atoi(row[3])
			if err != nil {
				return nil, fmt.Errorf("parse outcount: %w", err)
			}
			count.In = &in
			count.Out = &out
		}
		counts = append(counts, count)
	}
	return counts, nil
}

// parseDateAndTime combines legacy separate date and time columns, e.g.
// "11/7/2023" and "1:42:07 PM".
func parseDateAndTime(dateCol, timeCol, timeLayout string) (time.Time, error) {
	date, err := time.ParseInLocation("1/2/2006", strings.TrimSpace(dateCol), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	clock, err := time.ParseInLocation(timeLayout, strings.TrimSpace(timeCol), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

// FileSkipRows opens a file and reports how many preamble rows precede its
// data.
func FileSkipRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	_, skip, err := KindFromHeader(f)
	return skip, err
}
