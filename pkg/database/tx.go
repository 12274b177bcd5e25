package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrUnavailable marks failures caused by the database being unreachable
	// or saturated rather than by the statement itself.
	ErrUnavailable = errors.New("database unavailable")
	// ErrAcquireTimeout is returned when no pooled connection frees up in time.
	ErrAcquireTimeout = fmt.Errorf("%w: connection acquisition timed out", ErrUnavailable)
)

// Acquire checks a dedicated connection out of the pool, waiting at most the
// configured acquisition timeout. The caller must Close it.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()

	conn, err := p.DB.Connx(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire connection: %w", ErrAcquireTimeout)
		}
		return nil, Classify("acquire connection", err)
	}
	return conn, nil
}

// TxFunc runs statements inside a transaction. Returning an error rolls the
// transaction back.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

// Transaction acquires a dedicated connection, begins a transaction on it and
// runs fn. It commits when fn succeeds, rolls back and returns fn's error
// otherwise, and always hands the connection back to the pool.
func (p *Pool) Transaction(ctx context.Context, fn TxFunc) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	txCtx, cancel := p.WithQueryTimeout(ctx)
	defer cancel()

	tx, err := conn.BeginTxx(txCtx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(txCtx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return Classify("commit transaction", err)
	}
	return nil
}

// Classify wraps err with op and tags connectivity and timeout failures with
// ErrUnavailable. sql.ErrNoRows passes through untouched.
func Classify(op string, err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if unavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
