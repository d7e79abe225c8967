package reportrunner

import (
	"errors"
	"fmt"
)

// ErrDatabaseAccess matches every failure raised while talking to the database:
// connecting, calling a procedure, reading columns, scanning or fetching rows.
var ErrDatabaseAccess = errors.New("database access failure")

// DatabaseError records which report and which step failed.
type DatabaseError struct {
	Report string
	Op     string
	Err    error
}

func (e *DatabaseError) Error() string {
	if e.Report == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("report %s: %s: %v", e.Report, e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *DatabaseError) Is(target error) bool {
	return target == ErrDatabaseAccess
}

func dbError(report, op string, err error) error {
	return &DatabaseError{Report: report, Op: op, Err: err}
}
