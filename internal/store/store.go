// Package store provides database access for count records, factor tables,
// and the import log, backed by a pgx connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// ErrRecordNotFound indicates a recordnum with no row in the tc_header table.
var ErrRecordNotFound = errors.New("recordnum not found in tc_header table")

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RecordHeader is the subset of a count's tc_header row needed during import.
type RecordHeader struct {
	Recordnum    int
	MCD          string
	FC           int
	CountType    string
	BikePedGroup *string
	InDirection  *domain.Direction
	OutDirection *domain.Direction
}

const recordHeaderSQL = `
	SELECT mcd, fc, type, bikepedgroup, indir, outdir
	FROM tc_header
	WHERE recordnum = $1
`

// RecordHeader fetches the header row for a count. Returns ErrRecordNotFound
// if the recordnum has not been set up in the database.
func (s *Store) RecordHeader(ctx context.Context, recordnum int) (RecordHeader, error) {
	h := RecordHeader{Recordnum: recordnum}
	var indir, outdir *string
	err := s.pool.QueryRow(ctx, recordHeaderSQL, recordnum).
		Scan(&h.MCD, &h.FC, &h.CountType, &h.BikePedGroup, &indir, &outdir)
	if errors.Is(err, pgx.ErrNoRows) {
		return h, fmt.Errorf("%d: %w", recordnum, ErrRecordNotFound)
	}
	if err != nil {
		return h, err
	}
	if h.InDirection, err = parseOptionalDirection(indir); err != nil {
		return h, err
	}
	if h.OutDirection, err = parseOptionalDirection(outdir); err != nil {
		return h, err
	}
	return h, nil
}

func parseOptionalDirection(s *string) (*domain.Direction, error) {
	if s == nil {
		return nil, nil
	}
	d, err := domain.ParseDirection(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RecordExists reports whether a recordnum has a tc_header row.
func (s *Store) RecordExists(ctx context.Context, recordnum int) (bool, error) {
	var found int
	err := s.pool.QueryRow(ctx,
		"SELECT recordnum FROM tc_header WHERE recordnum = $1", recordnum).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const markImportedSQL = `
	UPDATE tc_header SET
		importdatadate = current_date,
		status = 'imported',
		counterid = $1,
		speedlimit = $2
	WHERE recordnum = $3
`

// MarkImported records a successful import on the count's header row.
func (s *Store) MarkImported(ctx context.Context, meta domain.Metadata) error {
	_, err := s.pool.Exec(ctx, markImportedSQL, meta.CounterID, meta.SpeedLimit, meta.Recordnum)
	return err
}

// ImportLogEntry is one line of the per-record import log kept in the
// database for review by count staff.
type ImportLogEntry struct {
	Datetime  time.Time
	Recordnum int
	Message   string
	Level     string
}

// NewImportLogEntry builds an entry with the level rendered for storage.
func NewImportLogEntry(recordnum int, level slog.Level, message string) ImportLogEntry {
	return ImportLogEntry{Recordnum: recordnum, Message: message, Level: level.String()}
}

// InsertImportLogEntry appends an entry to the import log.
func (s *Store) InsertImportLogEntry(ctx context.Context, entry ImportLogEntry) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO import_log (recordnum, message, log_level) VALUES ($1, $2, $3)",
		entry.Recordnum, entry.Message, entry.Level)
	return err
}

const importLogSQL = `
	SELECT datetime, recordnum, message, log_level
	FROM import_log
	WHERE recordnum = $1
	ORDER BY datetime DESC
`

// ImportLog returns all import log entries for a record, newest first.
func (s *Store) ImportLog(ctx context.Context, recordnum int) ([]ImportLogEntry, error) {
	rows, err := s.pool.Query(ctx, importLogSQL, recordnum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]ImportLogEntry, 0)
	for rows.Next() {
		var e ImportLogEntry
		if err := rows.Scan(&e.Datetime, &e.Recordnum, &e.Message, &e.Level); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
