package aadv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

type fakeStore struct {
	datetimes  []time.Time
	daily      []store.DailyTotal
	inOut      []store.InOutTotal
	header     store.RecordHeader
	headerErr  error
	equipment  *float64
	seasonal   store.SeasonalFactors
	bikeFactor float64
	pedFactor  float64
	excluded   []time.Time
	replaced   map[domain.Direction]int
}

func (f *fakeStore) CountDatetimes(_ context.Context, _ domain.CountKind, _ int) ([]time.Time, error) {
	return f.datetimes, nil
}

func (f *fakeStore) DirectionalTotalsByDate(_ context.Context, _ domain.CountKind, _ int) ([]store.DailyTotal, error) {
	return f.daily, nil
}

func (f *fakeStore) InOutTotalsByDate(_ context.Context, _ domain.CountKind, _ int) ([]store.InOutTotal, error) {
	return f.inOut, nil
}

func (f *fakeStore) RecordHeader(_ context.Context, _ int) (store.RecordHeader, error) {
	return f.header, f.headerErr
}

func (f *fakeStore) EquipmentFactor(_ context.Context, _ string) (*float64, error) {
	return f.equipment, nil
}

func (f *fakeStore) SeasonalFactors(_ context.Context, _ int, _ time.Time) (store.SeasonalFactors, error) {
	return f.seasonal, nil
}

func (f *fakeStore) BicycleFactor(_ context.Context, _ string, _ time.Time) (float64, error) {
	return f.bikeFactor, nil
}

func (f *fakeStore) PedestrianFactor(_ context.Context, _ time.Month) (float64, error) {
	return f.pedFactor, nil
}

func (f *fakeStore) ExcludedDays(_ context.Context) ([]time.Time, error) {
	return f.excluded, nil
}

func (f *fakeStore) ReplaceAADV(_ context.Context, _ int, values map[domain.Direction]int) error {
	f.replaced = values
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(dayOfMonth int) time.Time {
	return time.Date(2023, time.November, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// quarterHourDays generates full 15-minute coverage for consecutive days,
// with `rows` rows per bin (one per direction).
func quarterHourDays(firstDay, numDays, rows int) []time.Time {
	var datetimes []time.Time
	for d := 0; d < numDays; d++ {
		start := day(firstDay + d)
		for bin := 0; bin < 96; bin++ {
			t := start.Add(time.Duration(bin) * 15 * time.Minute)
			for r := 0; r < rows; r++ {
				datetimes = append(datetimes, t)
			}
		}
	}
	return datetimes
}

func fptr(v float64) *float64 { return &v }

func paHeader() store.RecordHeader {
	return store.RecordHeader{Recordnum: 166905, MCD: "4201760", FC: 7, CountType: "Volume"}
}

func TestCalculateFifteenMinuteVehicle(t *testing.T) {
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 2, 2),
		daily: []store.DailyTotal{
			{Date: day(7), Direction: domain.East, Total: 1000},
			{Date: day(7), Direction: domain.West, Total: 800},
			{Date: day(8), Direction: domain.East, Total: 1100},
			{Date: day(8), Direction: domain.West, Total: 700},
		},
		header:    paHeader(),
		equipment: fptr(1.02),
		seasonal:  store.SeasonalFactors{PASeason: fptr(0.9), PAAxle: fptr(1.1)},
	}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.FifteenMinuteVehicleKind, 166905)
	require.NoError(t, err)

	// Each day is weighted by season * axle * equipment = 0.9 * 1.1 * 1.02.
	assert.Equal(t, map[domain.Direction]int{
		domain.East: 1060,
		domain.West: 757,
		"":          1818,
	}, aadv)
}

func TestCalculateClassCountSkipsAxleFactor(t *testing.T) {
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 2),
		daily: []store.DailyTotal{
			{Date: day(7), Direction: domain.East, Total: 100},
			{Date: day(7), Direction: domain.West, Total: 100},
		},
		header:   store.RecordHeader{Recordnum: 1, MCD: "3400512", FC: 2, CountType: "Class"},
		seasonal: store.SeasonalFactors{NJSeason: fptr(0.5), NJAxle: fptr(2.0)},
	}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.IndividualVehicleKind, 1)
	require.NoError(t, err)

	// The axle factor must not be applied to classified vehicle counts.
	assert.Equal(t, map[domain.Direction]int{
		domain.East: 50,
		domain.West: 50,
		"":          100,
	}, aadv)
}

func TestCalculateBicycle(t *testing.T) {
	indir, outdir := domain.East, domain.West
	group := "B1"
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 1),
		inOut: []store.InOutTotal{
			{Date: day(7), Total: 30, In: 20, Out: 10},
		},
		header: store.RecordHeader{
			Recordnum: 2, MCD: "4201760", CountType: "Bicycle 2",
			BikePedGroup: &group, InDirection: &indir, OutDirection: &outdir,
		},
		bikeFactor: 2.0,
	}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.FifteenMinuteBicycleKind, 2)
	require.NoError(t, err)

	assert.Equal(t, map[domain.Direction]int{
		domain.East: 40,
		domain.West: 20,
		"":          60,
	}, aadv)
}

func TestCalculatePedestrian(t *testing.T) {
	indir, outdir := domain.North, domain.South
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 1),
		inOut: []store.InOutTotal{
			{Date: day(7), Total: 40, In: 25, Out: 15},
		},
		header: store.RecordHeader{
			Recordnum: 3, MCD: "4201760", CountType: "Pedestrian",
			InDirection: &indir, OutDirection: &outdir,
		},
		pedFactor: 1.5,
	}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.FifteenMinutePedestrianKind, 3)
	require.NoError(t, err)

	assert.Equal(t, map[domain.Direction]int{
		domain.North: 38,
		domain.South: 23,
		"":           60,
	}, aadv)
}

func TestCalculateSkipsExcludedDays(t *testing.T) {
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 2, 2),
		daily: []store.DailyTotal{
			{Date: day(7), Direction: domain.East, Total: 1000},
			{Date: day(7), Direction: domain.West, Total: 800},
			{Date: day(8), Direction: domain.East, Total: 1100},
			{Date: day(8), Direction: domain.West, Total: 700},
		},
		header:    paHeader(),
		equipment: fptr(1.02),
		seasonal:  store.SeasonalFactors{PASeason: fptr(0.9), PAAxle: fptr(1.1)},
		excluded:  []time.Time{day(8)},
	}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.FifteenMinuteVehicleKind, 166905)
	require.NoError(t, err)

	assert.Equal(t, map[domain.Direction]int{
		domain.East: 1010,
		domain.West: 808,
		"":          1818,
	}, aadv)
}

func TestCalculateInvalidMCD(t *testing.T) {
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 1),
		daily: []store.DailyTotal{
			{Date: day(7), Direction: domain.East, Total: 100},
		},
		header:   store.RecordHeader{Recordnum: 4, MCD: "9901234", FC: 2, CountType: "Volume"},
		seasonal: store.SeasonalFactors{PASeason: fptr(0.9)},
	}
	calc := New(fs, testLogger())

	_, err := calc.Calculate(context.Background(), domain.FifteenMinuteVehicleKind, 4)
	var mcdErr domain.InvalidMCDError
	require.ErrorAs(t, err, &mcdErr)
	assert.Equal(t, "9901234", mcdErr.MCD)
}

func TestCalculateBicycleMissingDirections(t *testing.T) {
	group := "B1"
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 1),
		inOut:     []store.InOutTotal{{Date: day(7), Total: 30, In: 20, Out: 10}},
		header: store.RecordHeader{
			Recordnum: 5, CountType: "Bicycle 2", BikePedGroup: &group,
		},
	}
	calc := New(fs, testLogger())

	_, err := calc.Calculate(context.Background(), domain.FifteenMinuteBicycleKind, 5)
	var missing domain.MissingFieldError
	require.ErrorAs(t, err, &missing)
}

func TestCalculateBadIntervalCount(t *testing.T) {
	// 30 rows on the first full day matches neither an hourly nor a
	// fifteen-minute count in any direction configuration.
	var datetimes []time.Time
	for i := 0; i < 30; i++ {
		datetimes = append(datetimes, day(7).Add(time.Duration(i)*15*time.Minute))
	}
	fs := &fakeStore{datetimes: datetimes}
	calc := New(fs, testLogger())

	_, err := calc.Calculate(context.Background(), domain.FifteenMinuteVehicleKind, 6)
	require.ErrorIs(t, err, domain.ErrBadIntervalCount)
}

func TestCalculateNoData(t *testing.T) {
	fs := &fakeStore{}
	calc := New(fs, testLogger())

	aadv, err := calc.Calculate(context.Background(), domain.FifteenMinuteVehicleKind, 7)
	require.NoError(t, err)
	assert.Empty(t, aadv)
}

func TestCalculateAndStore(t *testing.T) {
	fs := &fakeStore{
		datetimes: quarterHourDays(7, 1, 1),
		daily: []store.DailyTotal{
			{Date: day(7), Direction: domain.East, Total: 100},
		},
		header:   paHeader(),
		seasonal: store.SeasonalFactors{PASeason: fptr(1.0), PAAxle: fptr(1.0)},
	}
	calc := New(fs, testLogger())

	require.NoError(t, calc.CalculateAndStore(context.Background(), domain.FifteenMinuteVehicleKind, 166905))
	assert.Equal(t, map[domain.Direction]int{domain.East: 100, "": 100}, fs.replaced)
}

func TestCalculateAndStoreSkipsEmpty(t *testing.T) {
	fs := &fakeStore{}
	calc := New(fs, testLogger())

	require.NoError(t, calc.CalculateAndStore(context.Background(), domain.FifteenMinuteVehicleKind, 8))
	assert.Nil(t, fs.replaced)
}
