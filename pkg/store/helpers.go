package store

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/models"
	odect_sqlite3 "github.com/odect/odect/pkg/sqlite3"
)

var (
	// Ref: https://stackoverflow.com/questions/1711631/improve-insert-per-second-performance-of-sqlite
	// Ref: https://github.com/mattn/go-sqlite3/issues/1145#issuecomment-1519012055
	defaultOpts = map[string]string{
		"_busy_timeout": "5000",
		"_journal_mode": "MEMORY",
		"_synchronous":  "0",
	}

	// Columns carried over from upstream exports that do not hold generation.
	housekeepingPrefixes = []string{"Unnamed", "total_"}
)

// makeDSN makes the DSN from the DB file path and opts map.
func makeDSN(filePath string, opts map[string]string) string {
	optsSlice := make([]string, 0, len(opts))
	for _, opt := range slices.Sorted(maps.Keys(opts)) {
		optsSlice = append(optsSlice, fmt.Sprintf("%s=%s", opt, opts[opt]))
	}

	return fmt.Sprintf("file:%s?%s", filePath, strings.Join(optsSlice, "&"))
}

// openDBConnection opens the DB and returns the underlying connection as well.
func openDBConnection(dbFilePath string) (*sql.DB, *odect_sqlite3.Conn, error) {
	db, err := sql.Open(odect_sqlite3.DriverName, makeDSN(dbFilePath, defaultOpts))
	if err != nil {
		return nil, nil, err
	}

	// Writes are serialised anyway and a single connection keeps the
	// connection returned by GetLastConn alive.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()

		return nil, nil, err
	}

	dbConn, ok := odect_sqlite3.GetLastConn()
	if !ok {
		db.Close()

		return nil, nil, fmt.Errorf("no sqlite3 connection found for %s", dbFilePath)
	}

	return db, dbConn, nil
}

// housekeeping returns true if the column does not hold generation.
func housekeeping(col string) bool {
	if col == "" {
		return true
	}

	for _, prefix := range housekeepingPrefixes {
		if strings.HasPrefix(col, prefix) {
			return true
		}
	}

	return false
}

// normalise strips housekeeping columns, sums columns whose trimmed names
// collide and rounds values to precision decimals. Rows left without values
// are dropped.
func normalise(m *models.Matrix, precision int32) *models.Matrix {
	out := &models.Matrix{Rows: make([]models.Row, 0, m.Len())}

	for _, r := range m.Rows {
		values := make(map[string]float64, len(r.Values))

		for col, v := range r.Values {
			col = strings.TrimSpace(col)
			if housekeeping(col) {
				continue
			}

			values[col] += common.SanitizeFloat(v)
		}

		if len(values) == 0 {
			continue
		}

		for col, v := range values {
			values[col] = common.RoundTo(v, precision)
		}

		out.Rows = append(out.Rows, models.Row{Timestamp: r.Timestamp.UTC(), Values: values})
	}

	out.Sort()

	return out
}

// digest returns a content hash of the normalised rows of a day.
func digest(m *models.Matrix) (string, error) {
	var lines []string

	for _, r := range m.Rows {
		for _, col := range slices.Sorted(maps.Keys(r.Values)) {
			lines = append(lines, fmt.Sprintf("%d:%s:%s", r.Timestamp.Unix(), col, strconv.FormatFloat(r.Values[col], 'f', -1, 64)))
		}
	}

	return common.GetUUIDFromString(lines)
}

// dayRange returns the unix bounds [start, end) of the UTC days from..to.
func dayRange(from, to time.Time) (int64, int64) {
	return common.Day(from).Unix(), common.Day(to).AddDate(0, 0, 1).Unix()
}
