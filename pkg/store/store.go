// Package store persists the hourly generation matrix in a sqlite database
// and fills the days that are missing from it.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/models"
	"github.com/odect/odect/pkg/odect/metrics"
	odect_sqlite3 "github.com/odect/odect/pkg/sqlite3"
	"github.com/odect/odect/pkg/store/migrator"
	"golang.org/x/sync/errgroup"
)

// MigrationsFS contains the DB migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

const (
	migrationsDir = "migrations"
	sqlite3Main   = "main"
	pagesPerStep  = 25
	stepSleep     = 50 * time.Millisecond
)

// Custom errors.
var (
	ErrPersistence = errors.New("persisting generation failed")
	ErrNoFetcher   = errors.New("no day fetcher configured")
)

// DayFetcher reconstructs the generation matrix of one UTC day.
type DayFetcher interface {
	Fetch(ctx context.Context, day time.Time) (*models.Matrix, error)
}

// Config contains the store configuration.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Path of the sqlite file.
	Path string
	// Precision is the number of decimals values are rounded to.
	Precision int32
	// Concurrency is the number of days fetched in parallel.
	Concurrency int
	Fetcher     DayFetcher
}

// Store is the generation store.
type Store struct {
	logger *slog.Logger
	config *Config
	db     *sql.DB
	dbConn *odect_sqlite3.Conn
}

// SeriesSummary contains statistics of one stored series.
type SeriesSummary struct {
	Series string
	// Mean and Max are in MW.
	Mean float64
	Max  float64
	// Energy is in MWh.
	Energy float64
	Hours  int
}

// fetched is the outcome of the fetch of one day.
type fetched struct {
	day    time.Time
	matrix *models.Matrix
	err    error
}

// New opens the store, creating and migrating the DB when needed.
func New(c *Config) (*Store, error) {
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}

	db, dbConn, err := openDBConnection(c.Path)
	if err != nil {
		c.Logger.Error("Failed to open DB file", "path", c.Path, "err", err)

		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	m, err := migrator.New(MigrationsFS, migrationsDir, c.Logger)
	if err != nil {
		db.Close()

		return nil, err
	}

	if _, err := m.ApplyMigrations(db); err != nil {
		db.Close()

		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return &Store{
		logger: c.Logger,
		config: c,
		db:     db,
		dbConn: dbConn,
	}, nil
}

// Ensure makes sure every UTC day in [from, to] is stored, fetching the
// missing ones, and returns the rows of the range.
//
// Failed days are neither stored nor returned and their errors are joined
// into the returned error. When writing fails the error wraps ErrPersistence
// and the returned matrix still contains the rows computed in this run.
func (s *Store) Ensure(ctx context.Context, from, to time.Time) (*models.Matrix, error) {
	if s.config.Fetcher == nil {
		return nil, ErrNoFetcher
	}

	days, err := common.Days(from, to)
	if err != nil {
		return nil, err
	}

	defer common.TimeTrack(time.Now(), "Ensure generation", s.logger)

	stored, err := s.storedDays(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	var missing []time.Time

	for _, day := range days {
		if _, ok := stored[day.Unix()]; ok {
			s.config.Metrics.DayReused()

			continue
		}

		missing = append(missing, day)
	}

	s.logger.Info("Generation store status", "days", len(days), "stored", len(days)-len(missing), "missing", len(missing))

	results := s.fetch(ctx, missing)

	// Single writer in ascending day order
	runID := uuid.NewString()
	fresh := &models.Matrix{}

	var errs []error

	for _, r := range results {
		if r.err != nil {
			s.config.Metrics.DayFailed()
			s.logger.Error("Failed to reconstruct day", "day", r.day.Format(time.DateOnly), "err", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.day.Format(time.DateOnly), r.err))

			continue
		}

		s.config.Metrics.DayFetched()
		fresh.Merge(r.matrix)

		if err := s.write(context.WithoutCancel(ctx), runID, r.day, r.matrix); err != nil {
			s.config.Metrics.PersistFailed()
			s.logger.Error("Failed to persist day", "day", r.day.Format(time.DateOnly), "err", err)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrPersistence, r.day.Format(time.DateOnly), err))
		}
	}

	out, err := s.Load(context.WithoutCancel(ctx), from, to)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersistence, err))
		out = &models.Matrix{}
	}

	// In memory rows of days that could not be persisted
	out.Merge(fresh)

	return out, errors.Join(errs...)
}

// fetch reconstructs days concurrently and returns the outcomes in the
// order of days.
func (s *Store) fetch(ctx context.Context, days []time.Time) []fetched {
	results := make([]fetched, len(days))

	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)

	for i, day := range days {
		g.Go(func() error {
			results[i].day = day

			if err := ctx.Err(); err != nil {
				results[i].err = err

				return nil
			}

			m, err := s.config.Fetcher.Fetch(ctx, day)
			if err != nil {
				results[i].err = err

				return nil
			}

			results[i].matrix = normalise(m.Between(day, day.AddDate(0, 0, 1)), s.config.Precision)

			return nil
		})
	}

	// Errors are carried per day
	_ = g.Wait()

	return results
}

// write stores one day in a single transaction.
func (s *Store) write(ctx context.Context, runID string, day time.Time, m *models.Matrix) error {
	hash, err := digest(m)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertGenerationStmt)
	if err != nil {
		tx.Rollback()

		return err
	}
	defer stmt.Close()

	var series int

	for _, r := range m.Rows {
		for col, v := range r.Values {
			if _, err := stmt.ExecContext(ctx, r.Timestamp.Unix(), col, v, s.config.Precision); err != nil {
				tx.Rollback()

				return err
			}
		}

		series = max(series, len(r.Values))
	}

	if _, err := tx.ExecContext(ctx, insertDayStmt, day.Unix(), runID, hash, series, time.Now().Unix()); err != nil {
		tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("Day persisted", "day", day.Format(time.DateOnly), "run_id", runID, "digest", hash, "series", series)

	return nil
}

// Load returns the stored rows of the UTC days from..to without fetching.
func (s *Store) Load(ctx context.Context, from, to time.Time) (*models.Matrix, error) {
	start, end := dayRange(from, to)

	rows, err := s.db.QueryContext(ctx, selectGenerationStmt, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := &models.Matrix{}

	var (
		ts    int64
		col   string
		value float64
	)

	for rows.Next() {
		if err := rows.Scan(&ts, &col, &value); err != nil {
			return nil, err
		}

		t := time.Unix(ts, 0).UTC()
		if n := len(m.Rows); n == 0 || !m.Rows[n-1].Timestamp.Equal(t) {
			m.Rows = append(m.Rows, models.Row{Timestamp: t, Values: make(map[string]float64)})
		}

		m.Rows[len(m.Rows)-1].Values[col] = value
	}

	return m, rows.Err()
}

// Summary returns per series statistics of the stored rows of the UTC days
// from..to.
func (s *Store) Summary(ctx context.Context, from, to time.Time) ([]SeriesSummary, error) {
	start, end := dayRange(from, to)

	rows, err := s.db.QueryContext(ctx, selectSummaryStmt, s.config.Precision, s.config.Precision, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SeriesSummary

	for rows.Next() {
		var summary SeriesSummary
		if err := rows.Scan(&summary.Series, &summary.Mean, &summary.Max, &summary.Energy, &summary.Hours); err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// Days returns the stored days in ascending order.
func (s *Store) Days(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, selectDaysStmt, 0, int64(1)<<62)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		days []time.Time
		ts   int64
	)

	for rows.Next() {
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}

		days = append(days, time.Unix(ts, 0).UTC())
	}

	return days, rows.Err()
}

// Digests returns the content digests of the stored days keyed by day.
func (s *Store) Digests(ctx context.Context) (map[time.Time]string, error) {
	rows, err := s.db.QueryContext(ctx, selectDigestsStmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	digests := make(map[time.Time]string)

	var (
		day  int64
		hash string
	)

	for rows.Next() {
		if err := rows.Scan(&day, &hash); err != nil {
			return nil, err
		}

		digests[time.Unix(day, 0).UTC()] = hash
	}

	return digests, rows.Err()
}

// Dump writes all stored values as timestamp,series,value CSV records.
func (s *Store) Dump(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, selectGenerationStmt, 0, int64(1)<<62)
	if err != nil {
		return err
	}
	defer rows.Close()

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "series", "value"}); err != nil {
		return err
	}

	var (
		ts    int64
		col   string
		value float64
	)

	for rows.Next() {
		if err := rows.Scan(&ts, &col, &value); err != nil {
			return err
		}

		record := []string{
			time.Unix(ts, 0).UTC().Format(time.RFC3339),
			col,
			strconv.FormatFloat(value, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return err
	}

	writer.Flush()

	return writer.Error()
}

// Backup vacuums the DB and copies it to path using the sqlite3 online
// backup API.
func (s *Store) Backup(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.Warn("Failed to vacuum DB", "err", err)
	}

	// Create a backup DB file
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	f.Close()

	destDB, destConn, err := openDBConnection(path)
	if err != nil {
		return err
	}
	defer destDB.Close()

	// NOTE: backup.Finish() MUST be called to prevent panics.
	var backup *sqlite3.SQLiteBackup
	if backup, err = destConn.Backup(sqlite3Main, s.dbConn, sqlite3Main); err != nil {
		return err
	}

	var isDone bool
	for !isDone {
		if isDone, err = backup.Step(pagesPerStep); err != nil {
			if finishErr := backup.Finish(); finishErr != nil {
				return fmt.Errorf("errors: %w, %w", err, finishErr)
			}

			return err
		}

		s.logger.Debug("DB backup step", "remaining", backup.Remaining(), "page_count", backup.PageCount())

		if !isDone {
			time.Sleep(stepSleep)
		}
	}

	if err := backup.Finish(); err != nil {
		return err
	}

	s.logger.Info("DB backed up", "file", path)

	return nil
}

// Close closes the DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedDays returns the unix timestamps of the stored days in the range.
func (s *Store) storedDays(ctx context.Context, from, to time.Time) (map[int64]struct{}, error) {
	start, end := dayRange(from, to)

	rows, err := s.db.QueryContext(ctx, selectDaysStmt, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[int64]struct{})

	var ts int64

	for rows.Next() {
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}

		days[ts] = struct{}{}
	}

	return days, rows.Err()
}
