package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvrpc/traffic-counts-sub000/internal/config"
	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
	"github.com/dvrpc/traffic-counts-sub000/internal/observability"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

const vehicleFile = `Site Code,40972
Start Date,11/7/2023
"Veh.No.","Date","Time","Channel","Class","Speed"
1,11/7/2023,10:02:13 AM,1,2,34.9
2,11/7/2023,11:14:51 AM,1,3,41.2
3,11/7/2023,12:15:02 PM,2,0,28.0
4,11/7/2023,1:15:02 PM,2,9,55.0
`

const fifteenMinuteFile = `Site Code,40972
"Number","Date","Time","Channel1","Channel2"
1,11/7/2023,10:00 AM,42,37
2,11/7/2023,10:15 AM,29,31
`

const bikeFile = `Time,Total,IN,OUT
2023-11-07 10:00:00,7,4,3
2023-11-07 10:15:00,2,1,1
`

type fakeDatastore struct {
	recordExists bool

	classRows    []domain.ClassBucket
	speedRows    []domain.SpeedBucket
	volRows      []domain.FifteenMinuteVehicle
	bikeRows     []domain.FifteenMinuteBikePed
	pedRows      []domain.FifteenMinuteBikePed
	volPivots    []domain.NonNormalVolCount
	speedPivots  []domain.NonNormalAvgSpeedCount
	logEntries   []store.ImportLogEntry
	markedImport *domain.Metadata
}

func (f *fakeDatastore) Ping(_ context.Context) error { return nil }

func (f *fakeDatastore) RecordExists(_ context.Context, _ int) (bool, error) {
	return f.recordExists, nil
}

func (f *fakeDatastore) ReplaceVehicleClassCounts(_ context.Context, _ int, rows []domain.ClassBucket) error {
	f.classRows = rows
	return nil
}

func (f *fakeDatastore) ReplaceSpeedRangeCounts(_ context.Context, _ int, rows []domain.SpeedBucket) error {
	f.speedRows = rows
	return nil
}

func (f *fakeDatastore) ReplaceFifteenMinuteVehicles(_ context.Context, _ int, rows []domain.FifteenMinuteVehicle) error {
	f.volRows = rows
	return nil
}

func (f *fakeDatastore) ReplaceBicycleCounts(_ context.Context, _ int, rows []domain.FifteenMinuteBikePed) error {
	f.bikeRows = rows
	return nil
}

func (f *fakeDatastore) ReplacePedestrianCounts(_ context.Context, _ int, rows []domain.FifteenMinuteBikePed) error {
	f.pedRows = rows
	return nil
}

func (f *fakeDatastore) ReplaceVolumePivot(_ context.Context, _ int, rows []domain.NonNormalVolCount) error {
	f.volPivots = rows
	return nil
}

func (f *fakeDatastore) ReplaceSpeedPivot(_ context.Context, _ int, rows []domain.NonNormalAvgSpeedCount) error {
	f.speedPivots = rows
	return nil
}

func (f *fakeDatastore) InsertImportLogEntry(_ context.Context, entry store.ImportLogEntry) error {
	f.logEntries = append(f.logEntries, entry)
	return nil
}

func (f *fakeDatastore) MarkImported(_ context.Context, meta domain.Metadata) error {
	f.markedImport = &meta
	return nil
}

func (f *fakeDatastore) ClassTotals(_ context.Context, _ int) (store.ClassTotals, error) {
	return store.ClassTotals{}, nil
}

func (f *fakeDatastore) HourlyVolumes(_ context.Context, _ domain.CountKind, _ int) ([]domain.HourlyCount, error) {
	return nil, nil
}

func (f *fakeDatastore) HourlyInOutVolumes(_ context.Context, _ domain.CountKind, _ int) ([]store.HourlyInOutVolume, error) {
	return nil, nil
}

func (f *fakeDatastore) RecordHeader(_ context.Context, recordnum int) (store.RecordHeader, error) {
	return store.RecordHeader{Recordnum: recordnum}, nil
}

func (f *fakeDatastore) BicycleBins(_ context.Context, _ int) ([]store.TimedTotal, error) {
	return nil, nil
}

type fakeCalculator struct {
	calls []domain.CountKind
}

func (f *fakeCalculator) CalculateAndStore(_ context.Context, kind domain.CountKind, _ int) error {
	f.calls = append(f.calls, kind)
	return nil
}

type fakePublisher struct {
	events []domain.ImportEvent
}

func (f *fakePublisher) Publish(_ context.Context, event domain.ImportEvent) error {
	f.events = append(f.events, event)
	return nil
}

func writeCountFile(t *testing.T, dir, subdir, name, content string) string {
	t.Helper()
	kindDir := filepath.Join(dir, subdir)
	require.NoError(t, os.MkdirAll(kindDir, 0o755))
	path := filepath.Join(kindDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImporter(t *testing.T, dataDir string, ds *fakeDatastore) (*Importer, *fakeCalculator, *fakePublisher) {
	t.Helper()
	calc := &fakeCalculator{}
	pub := &fakePublisher{}
	cfg := &config.Config{DataDir: dataDir, CleanupFiles: true, PollInterval: time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imp := New(cfg, ds, calc, pub, logger, observability.NewMetricsForTesting())
	return imp, calc, pub
}

func TestProcessFileIndividualVehicle(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "vehicle", "rc-166905-ew-40972-35.txt", vehicleFile)
	ds := &fakeDatastore{recordExists: true}
	imp, calc, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	// Fixture spans 10:00 through 13:15; both channels get zero-filled rows
	// for that whole span, minus one trimmed bucket per channel at each end.
	assert.NotEmpty(t, ds.classRows)
	assert.NotEmpty(t, ds.speedRows)
	require.NotNil(t, ds.markedImport)
	assert.Equal(t, 166905, ds.markedImport.Recordnum)

	require.Len(t, calc.calls, 1)
	assert.Equal(t, domain.IndividualVehicleKind, calc.calls[0])

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ImportStatusImported, pub.events[0].Status)
	assert.Equal(t, 4, pub.events[0].Rows)

	// Cleanup removes the file after a successful import.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessFileFifteenMinuteVehicle(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "15minutevehicle", "rc-166906-ew-40972-35.txt", fifteenMinuteFile)
	ds := &fakeDatastore{recordExists: true}
	imp, calc, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	// Two rows, two directions each.
	assert.Len(t, ds.volRows, 4)
	require.Len(t, calc.calls, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, 4, pub.events[0].Rows)
}

func TestProcessFileBicycleSkipsAADV(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "15minutebicycle", "rc-166907-ew-101-na.txt", bikeFile)
	ds := &fakeDatastore{recordExists: true}
	imp, calc, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	assert.Len(t, ds.bikeRows, 2)
	assert.Empty(t, calc.calls)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ImportStatusImported, pub.events[0].Status)
}

func TestProcessFilePedestrian(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "15minutepedestrian", "rc-166908-ew-101-na.txt", bikeFile)
	ds := &fakeDatastore{recordExists: true}
	imp, calc, _ := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	assert.Len(t, ds.pedRows, 2)
	assert.Len(t, calc.calls, 1)
}

func TestProcessFileUnknownRecordnum(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "vehicle", "rc-999999-ew-40972-35.txt", vehicleFile)
	ds := &fakeDatastore{recordExists: false}
	imp, calc, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	assert.Nil(t, ds.markedImport)
	assert.Empty(t, calc.calls)
	assert.Empty(t, pub.events)
	require.NotEmpty(t, ds.logEntries)
	assert.Contains(t, ds.logEntries[0].Message, "not found in tc_header")
}

func TestProcessFileKindMismatch(t *testing.T) {
	dir := t.TempDir()
	// A pre-binned volume file dropped in the individual vehicle directory.
	path := writeCountFile(t, dir, "vehicle", "rc-166909-ew-40972-35.txt", fifteenMinuteFile)
	ds := &fakeDatastore{recordExists: true}
	imp, _, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	assert.Nil(t, ds.markedImport)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ImportStatusFailed, pub.events[0].Status)
}

func TestProcessFileBadFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeCountFile(t, dir, "vehicle", "not-enough-parts.txt", vehicleFile)
	ds := &fakeDatastore{recordExists: true}
	imp, _, pub := newTestImporter(t, dir, ds)

	imp.ProcessFile(context.Background(), path)

	assert.Nil(t, ds.markedImport)
	assert.Empty(t, pub.events)
}

func TestProcessDirectorySkipsLogFiles(t *testing.T) {
	dir := t.TempDir()
	writeCountFile(t, dir, "vehicle", "import.log", "not a count")
	writeCountFile(t, dir, "15minutebicycle", "rc-166907-ew-101-na.txt", bikeFile)
	ds := &fakeDatastore{recordExists: true}
	imp, _, pub := newTestImporter(t, dir, ds)

	require.NoError(t, imp.ProcessDirectory(context.Background()))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "15minutebicycle", pub.events[0].Kind)
}

func TestCheckReadiness(t *testing.T) {
	imp, _, _ := newTestImporter(t, t.TempDir(), &fakeDatastore{})
	assert.NoError(t, imp.CheckReadiness(context.Background()))
}
