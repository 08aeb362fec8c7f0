package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"pantry.app/internal/entity"
	"pantry.app/internal/statement"
	"pantry.app/internal/tabular"
)

// Sentinels raised by callers of the executor and classified here.
var (
	// ErrStaleData flags an optimistic-concurrency conflict: the client's
	// view of a row is older than what is persisted.
	ErrStaleData = errors.New("db: stale data")

	// ErrBadRequest flags input that failed validation before any
	// statement was executed.
	ErrBadRequest = errors.New("db: bad request")
)

// Failure is one entry of the fixed error taxonomy. The client message is a
// short, fixed string; the log message carries the fuller internal
// description. Raw driver text is never part of either.
type Failure struct {
	StatusCode    int
	ClientMessage string
	LogMessage    string
}

var (
	failIntegrity   = Failure{400, "Integrity error.", "Attempted to breach database constraints."}
	failStatement   = Failure{500, "Statement error.", "Attempted to perform a bad statement."}
	failUnavailable = Failure{503, "Database is unavailable.", "Could not reach the database."}
	failInternal    = Failure{500, "Database error.", "An internal error occurred in the database. Please contact the database administrator."}
	failBadRequest  = Failure{400, "Bad request.", "Incoming data did not pass validation."}
	failStaleData   = Failure{400, "Stale data.", "One or more rows involved in the operation could not be found or did not match the expected values."}
	failIndex       = Failure{400, "Index error.", "Expected returning data but none was found."}
	failUnknown     = Failure{500, "Internal server error.", "An unknown error occurred while interacting with the database."}
)

// Classify maps any failure surfaced by the executor onto the fixed
// taxonomy. Unmapped error kinds fall through to the unclassified entry.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return Failure{StatusCode: 200}
	case errors.Is(err, ErrStaleData):
		return failStaleData
	case errors.Is(err, tabular.ErrNoRow):
		return failIndex
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, entity.ErrUnknownEntity),
		errors.Is(err, statement.ErrValidation),
		errors.Is(err, statement.ErrEmptyFilters):
		return failBadRequest
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPg(pgErr)
	}

	if isConnectionFailure(err) {
		return failUnavailable
	}

	return failUnknown
}

func classifyPg(pgErr *pgconn.PgError) Failure {
	code := pgErr.Code
	switch {
	case strings.HasPrefix(code, "23"): // integrity constraint violation
		return failIntegrity
	case strings.HasPrefix(code, "42"): // syntax error or access rule violation
		return failStatement
	case strings.HasPrefix(code, "08"), // connection exception
		strings.HasPrefix(code, "53"), // insufficient resources
		strings.HasPrefix(code, "57"): // operator intervention / shutdown
		return failUnavailable
	case strings.HasPrefix(code, "XX"), // internal error
		strings.HasPrefix(code, "58"), // system error
		strings.HasPrefix(code, "F0"), // config file error
		strings.HasPrefix(code, "P0"): // plpgsql error
		return failInternal
	default:
		return failUnknown
	}
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
