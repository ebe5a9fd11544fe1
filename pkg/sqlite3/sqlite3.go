/*
Package sqlite3 implements a connect hook around the sqlite3 driver so that the
underlying connection can be fetched from the driver for more advanced operations such
as backups.

The driver also registers custom SQL functions used by the generation store.
*/
package sqlite3

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/odect/odect/internal/common"
)

// Init creates the connections map and registers the driver with the SQL package.
func init() {
	conns = make(map[uint64]*Conn)
	sql.Register(DriverName, &Driver{
		sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("round_to", roundTo, true)
			},
		},
	})
}

// In order to use this driver, specify the DriverName to sql.Open.
const (
	DriverName = "odect_sqlite3"
)

var (
	seq   uint64
	mu    sync.Mutex
	conns map[uint64]*Conn
)

// Driver embeds a sqlite3 driver but overrides the Open function to ensure the
// connection created is a local connection with a sequence ID. It then maintains the
// connection locally until it is closed so that the underlying sqlite3 connection can
// be returned on demand.
type Driver struct {
	sqlite3.SQLiteDriver
}

// Open implements the sql.Driver interface and returns a sqlite3 connection that can
// be fetched by the user using GetLastConn.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	inner, err := d.SQLiteDriver.Open(dsn)
	if err != nil {
		return nil, err
	}

	sconn, ok := inner.(*sqlite3.SQLiteConn)
	if !ok {
		return nil, fmt.Errorf("unknown connection type %T", inner)
	}

	mu.Lock()
	seq++
	conn := &Conn{cid: seq, SQLiteConn: sconn}
	conns[conn.cid] = conn
	mu.Unlock()

	return conn, nil
}

// Conn wraps a sqlite3.SQLiteConn and maintains an ID so that the connection can be
// closed.
type Conn struct {
	cid uint64
	*sqlite3.SQLiteConn
}

// Close the DB connection and remove it from the connections map.
func (c *Conn) Close() error {
	mu.Lock()
	delete(conns, c.cid)
	mu.Unlock()

	return c.SQLiteConn.Close()
}

// Backup creates a backup of the DB using the sqlite3 online backup API.
// Finish() MUST be called on the returned backup.
func (c *Conn) Backup(dest string, srcConn *Conn, src string) (*sqlite3.SQLiteBackup, error) {
	return c.SQLiteConn.Backup(dest, srcConn.SQLiteConn, src)
}

// GetLastConn returns the last connection created by the driver. Ping the DB
// right before calling it to make sure the returned connection is the DB's.
func GetLastConn() (*Conn, bool) {
	mu.Lock()
	defer mu.Unlock()

	conn, ok := conns[seq]

	return conn, ok
}

// NumConns returns the number of active connections. Only for testing purposes.
func NumConns() int {
	mu.Lock()
	defer mu.Unlock()

	return len(conns)
}

// roundTo rounds value half away from zero to places decimals.
func roundTo(value float64, places int64) float64 {
	return common.RoundTo(value, int32(places))
}
