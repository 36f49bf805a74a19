// Package repository holds the MySQL data access of the rental backend.
//
// Derived values (title counts, item availability, rental counts, active
// dependents) are computed with SQL aggregates at read time and never
// stored.  Methods suffixed with Tx run inside a caller supplied
// transaction; the ForUpdate variants take row locks.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is wrapped by every per-entity not found error so handlers
// can map them all to 404 with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent records, such as deleting a director that still
// directs titles, or a duplicate unique value.  Handlers translate it
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrInvalidReference is returned when a row points at a parent that does
// not exist (an item of an unknown title, a dependent of an unknown
// member).
var ErrInvalidReference = errors.New("invalid reference")

var (
	ErrActorNotFound     = fmt.Errorf("actor %w", ErrNotFound)
	ErrDirectorNotFound  = fmt.Errorf("director %w", ErrNotFound)
	ErrClassNotFound     = fmt.Errorf("class %w", ErrNotFound)
	ErrTitleNotFound     = fmt.Errorf("title %w", ErrNotFound)
	ErrItemNotFound      = fmt.Errorf("item %w", ErrNotFound)
	ErrMemberNotFound    = fmt.Errorf("member %w", ErrNotFound)
	ErrDependentNotFound = fmt.Errorf("dependent %w", ErrNotFound)
	ErrRentalNotFound    = fmt.Errorf("rental %w", ErrNotFound)
)

// MySQL server error numbers translated by translate.
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlCheckViolated    = 3819
	mysqlRowIsReferenced2 = 1217
)

// translate maps constraint violations reported by MySQL onto the
// package sentinels, keeping the driver error in the chain.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry, mysqlRowIsReferenced, mysqlRowIsReferenced2:
		return fmt.Errorf("%w: %s", ErrConflict, me.Message)
	case mysqlNoReferencedRow:
		return fmt.Errorf("%w: %s", ErrInvalidReference, me.Message)
	case mysqlCheckViolated:
		return fmt.Errorf("%w: %s", ErrConflict, me.Message)
	}
	return err
}
