// Package loaderrors contains the error kinds returned by the loader together with helpers classifying
// database errors into those kinds and deciding whether an operation is worth retrying.
//
// Callers should match on these types with errors.As, since most of them are wrapped with a stack trace
// and a message by the time they reach the top of the call chain.
package loaderrors

import (
	"context"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// ErrReferentialIntegrity is returned when generated rows would reference keys that don't exist,
// e.g. because a sampling pool is empty or a foreign key check failed in the database.
type ErrReferentialIntegrity struct {
	Table   string
	Message string
	Cause   error
}

func (err *ErrReferentialIntegrity) Error() string {
	s := fmt.Sprintf("referential integrity violated on table %q: %s", err.Table, err.Message)
	if err.Cause != nil {
		s = s + "; " + err.Cause.Error()
	}
	return s
}

func (err *ErrReferentialIntegrity) Unwrap() error {
	return err.Cause
}

// ErrConstraintViolation is returned when the store rejects a row for a reason other than a missing
// referenced key, e.g. a unique, not-null or check constraint.
type ErrConstraintViolation struct {
	Table      string
	Constraint string
	Message    string
	Cause      error
}

func (err *ErrConstraintViolation) Error() string {
	s := fmt.Sprintf("constraint %q violated on table %q", err.Constraint, err.Table)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

func (err *ErrConstraintViolation) Unwrap() error {
	return err.Cause
}

// ErrConnectivity is returned when the store could not be reached or dropped the connection.
type ErrConnectivity struct {
	Operation string
	Cause     error
}

func (err *ErrConnectivity) Error() string {
	return fmt.Sprintf("connectivity lost during %s: %v", err.Operation, err.Cause)
}

func (err *ErrConnectivity) Unwrap() error {
	return err.Cause
}

// ErrPartialBatch is returned when a bulk insert wrote a different number of rows than requested.
// Stage is either "facts" or "associations".
type ErrPartialBatch struct {
	Window int
	Stage  string
	Cause  error
}

func (err *ErrPartialBatch) Error() string {
	return fmt.Sprintf("partial batch in window %d during %s: %v", err.Window, err.Stage, err.Cause)
}

func (err *ErrPartialBatch) Unwrap() error {
	return err.Cause
}

// ErrMaxRetriesExceeded is returned when an operation has been retried the maximum number of times and still failed.
type ErrMaxRetriesExceeded struct {
	Message   string
	LastError error
}

func (err *ErrMaxRetriesExceeded) Error() string {
	if err.Message != "" {
		return fmt.Sprintf("exceeded maximum number of retries; %s: %v", err.Message, err.LastError)
	}
	return fmt.Sprintf("exceeded maximum number of retries: %v", err.LastError)
}

func (err *ErrMaxRetriesExceeded) Unwrap() error {
	return err.LastError
}

// ErrWindowFailed reports where a load stopped.  Every window up to and including LastCommittedWindow is
// durable and CommittedRows news rows were persisted by the run; Window was rolled back.
// LastCommittedWindow is -1 if no window was committed.
type ErrWindowFailed struct {
	Window              int
	LastCommittedWindow int
	CommittedRows       int64
	Cause               error
}

func (err *ErrWindowFailed) Error() string {
	return fmt.Sprintf(
		"window %d failed (last contiguous committed window %d, %d news rows committed): %v",
		err.Window, err.LastCommittedWindow, err.CommittedRows, err.Cause)
}

func (err *ErrWindowFailed) Unwrap() error {
	return err.Cause
}

// ErrCommitUnresolved is returned when a commit failed in a way that leaves its outcome unknown and the store
// could not be asked whether the rows landed.  Retrying could write them twice, so it is never retried.
type ErrCommitUnresolved struct {
	Table      string
	CommitErr  error
	ResolveErr error
}

func (err *ErrCommitUnresolved) Error() string {
	return fmt.Sprintf("commit into %q may or may not have been applied: %v (checking failed: %v)",
		err.Table, err.CommitErr, err.ResolveErr)
}

func (err *ErrCommitUnresolved) Unwrap() error {
	return err.CommitErr
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string // Name of the field referred to, e.g., "batchSize"
	Value   any    // The invalid value that was provided
	Message string // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// IsNetworkError returns true if err was caused by the network, i.e. the operation may succeed if retried.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// IsRetryablePostgresError returns true if err is a postgres error the server expects clients to retry.
func IsRetryablePostgresError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.CannotConnectNow,
		pgerrcode.TooManyConnections,
		pgerrcode.LockNotAvailable:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}

// IsRetryable returns true for transient failures: connectivity problems, retryable postgres errors and
// per-operation timeouts.  Cancellation by the caller and unresolved commits are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var unresolved *ErrCommitUnresolved
	if errors.As(err, &unresolved) {
		return false
	}
	var connErr *ErrConnectivity
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return IsNetworkError(err) || IsRetryablePostgresError(err)
}

// Classify converts a raw store error into one of the error kinds of this package.
// Errors that don't map onto a kind are returned with a stack trace and operation message attached.
func Classify(table string, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.WithMessage(err, operation)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return errors.WithStack(&ErrReferentialIntegrity{Table: table, Message: pgErr.Message, Cause: err})
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return errors.WithStack(&ErrConstraintViolation{
				Table:      table,
				Constraint: constraintName(pgErr),
				Message:    pgErr.Message,
				Cause:      err,
			})
		case IsRetryablePostgresError(err):
			return errors.WithMessage(err, operation)
		}
	}
	if IsNetworkError(err) {
		return errors.WithStack(&ErrConnectivity{Operation: operation, Cause: err})
	}
	return errors.Wrap(err, operation)
}

func constraintName(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return pgErr.Code
}
