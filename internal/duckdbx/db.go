// Copyright (C) 2025 Convolake, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package duckdbx manages in-memory DuckDB instances used to query remote
// parquet partitions over HTTP.
package duckdbx

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Global mutex to serialize extension/secret DDL across the process.
// DuckDB extension loading may crash when done concurrently in many engines.
var duckdbDDLMu sync.Mutex

// DB manages a small pool of DuckDB instances (one DB+Conn per item).
// Remote-file access only works after the httpfs extension is loaded, so
// pools created with WithHTTPFS run INSTALL once and LOAD per connection
// before any query is issued.
type DB struct {
	poolSize int
	httpfs   bool

	installOnce sync.Once
	installErr  error

	mu  sync.Mutex
	cur int
	ch  chan *pooledConn
}

type pooledConn struct {
	db   *sql.DB
	conn *sql.Conn
}

// Option configures a DB.
type Option func(*DB)

// WithHTTPFS enables the httpfs extension on every pooled connection.
func WithHTTPFS() Option {
	return func(d *DB) { d.httpfs = true }
}

// WithPoolSize overrides the connection pool size.
func WithPoolSize(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.poolSize = n
		}
	}
}

// New creates a pool of in-memory DuckDB instances.
func New(opts ...Option) (*DB, error) {
	poolSize := min(4, max(1, runtime.GOMAXPROCS(0)/2))
	d := &DB{poolSize: poolSize}
	for _, opt := range opts {
		opt(d)
	}
	d.ch = make(chan *pooledConn, d.poolSize)
	return d, nil
}

// Close tears down every pooled instance.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		select {
		case pc := <-d.ch:
			_ = pc.conn.Close()
			_ = pc.db.Close()
			d.cur--
		default:
			return nil
		}
	}
}

// GetConnection returns a pooled connection and a release func.
func (d *DB) GetConnection(ctx context.Context) (*sql.Conn, func(), error) {
	// try pooled
	select {
	case pc := <-d.ch:
		return pc.conn, func() { d.release(pc) }, nil
	default:
	}

	// create new if capacity
	d.mu.Lock()
	canCreate := d.cur < d.poolSize
	if canCreate {
		d.cur++
	}
	d.mu.Unlock()

	if canCreate {
		pc, err := d.newConn(ctx)
		if err != nil {
			d.mu.Lock()
			d.cur--
			d.mu.Unlock()
			return nil, nil, err
		}
		return pc.conn, func() { d.release(pc) }, nil
	}

	// wait for one
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case pc := <-d.ch:
		return pc.conn, func() { d.release(pc) }, nil
	}
}

func (d *DB) release(pc *pooledConn) {
	d.ch <- pc
}

func (d *DB) newConn(ctx context.Context) (*pooledConn, error) {
	if d.httpfs {
		if err := d.ensureInstall(ctx); err != nil {
			return nil, err
		}
	}

	// brand-new in-memory DB instance for this pooled item
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}
	// one physical connection per DB instance
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if d.httpfs {
		duckdbDDLMu.Lock()
		_, err = conn.ExecContext(ctx, "LOAD httpfs;")
		duckdbDDLMu.Unlock()
		if err != nil {
			_ = conn.Close()
			_ = db.Close()
			return nil, fmt.Errorf("LOAD httpfs: %w", err)
		}
	}

	return &pooledConn{db: db, conn: conn}, nil
}

// Best-effort INSTALL once per process so subsequent LOADs find the
// extension locally.
func (d *DB) ensureInstall(ctx context.Context) error {
	d.installOnce.Do(func() {
		db, err := sql.Open("duckdb", "")
		if err != nil {
			d.installErr = err
			return
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		conn, err := db.Conn(ctx)
		if err != nil {
			d.installErr = err
			return
		}
		defer func() { _ = conn.Close() }()
		duckdbDDLMu.Lock()
		_, _ = conn.ExecContext(ctx, "INSTALL httpfs;")
		duckdbDDLMu.Unlock()
	})
	return d.installErr
}
