// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL        string
	ClientInfo clickhouse.ClientInfo
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH is a clickhouse connection handle
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and dials clickhouse
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = cfg.ClientInfo

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: nil connection")
	}
	return c.conn.Ping(ctx)
}

// Insert appends rows to table via a prepared batch
// rows must be [][]any in column order of the table
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("ch: prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			return fmt.Errorf("ch: append: %w", err)
		}
	}
	return batch.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return driverRows{r: rs}, nil
}

// Close closes the connection
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type driverRows struct{ r driver.Rows }

func (x driverRows) Next() bool             { return x.r.Next() }
func (x driverRows) Scan(dest ...any) error { return x.r.Scan(dest...) }
func (x driverRows) Err() error             { return x.r.Err() }
func (x driverRows) Close() error           { return x.r.Close() }
func (x driverRows) Columns() []string      { return x.r.Columns() }
