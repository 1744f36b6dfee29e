// Package runlock guards each coordinator run with a Postgres advisory
// lock so overlapping invocations cannot double-send a digest.
//
// The lock is session-scoped, so every acquisition takes a dedicated
// connection and holds it until release. There is no TTL: if the process
// dies mid-run, Postgres releases the lock server-side when the
// connection drops. A run that cannot take the lock is skipped entirely -
// the next poll re-derives the same eligibility, so nothing is lost.
package runlock

import (
	"context"
	"database/sql"
	"fmt"
)

// Lock acquires a process-wide advisory lock keyed by an int64. All
// instances sharing the same database must use the same key.
type Lock struct {
	db  *sql.DB
	key int64
}

// New creates a Lock.
func New(db *sql.DB, key int64) *Lock {
	return &Lock{db: db, key: key}
}

// Acquire attempts a non-blocking lock grab. The bool reports whether the
// lock was obtained; when true, the caller must Release the lease.
func (l *Lock) Acquire(ctx context.Context) (*Lease, bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("runlock: dedicated connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("runlock: advisory lock query: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	return &Lease{conn: conn, key: l.key}, true, nil
}

// Lease is a held advisory lock.
type Lease struct {
	conn *sql.Conn
	key  int64
}

// Release unlocks and returns the dedicated connection to the pool.
// Closing the connection would release the lock anyway; the explicit
// unlock just avoids churning pool connections.
func (l *Lease) Release(ctx context.Context) error {
	defer l.conn.Close()

	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released); err != nil {
		return fmt.Errorf("runlock: advisory unlock: %w", err)
	}
	if !released {
		return fmt.Errorf("runlock: lock %d was not held", l.key)
	}
	return nil
}
