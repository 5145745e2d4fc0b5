package database

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrWriteConflict marks a driver error caused by a concurrent writer: a lost
// lock race, a serialization failure or a unique index that another
// transaction filled first. Such a write can succeed when re-run against
// fresh state.
var ErrWriteConflict = errors.New("concurrent write conflict")

// Dialect hides the differences between the supported SQL engines
type Dialect interface {
	DriverName() string
	DSN(config DialectConfig) string

	// RewriteQuery converts ? placeholders where the engine wants another syntax
	RewriteQuery(query string) string

	// SupportsLastInsertId is false for engines that need INSERT ... RETURNING id
	SupportsLastInsertId() bool

	ConfigureConnection(db *sql.DB) error
	MigrationsSubdir() string
	CreateMigrationsTableQuery() string

	// IsWriteConflict reports whether a driver error was caused by a
	// concurrent writer
	IsWriteConflict(err error) bool
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

type writeConflictError struct {
	err error
}

func (e *writeConflictError) Error() string        { return "write conflict: " + e.err.Error() }
func (e *writeConflictError) Unwrap() error        { return e.err }
func (e *writeConflictError) Is(target error) bool { return target == ErrWriteConflict }

// classify tags err with ErrWriteConflict when the dialect recognises it
func classify(d Dialect, err error) error {
	if err == nil || errors.Is(err, ErrWriteConflict) || !d.IsWriteConflict(err) {
		return err
	}
	return &writeConflictError{err: err}
}

// applyPool sets the connection pool limits shared by every engine
func applyPool(db *sql.DB, maxOpen int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}

// numberPlaceholders converts ? placeholders to $1, $2, ... leaving question
// marks inside quoted literals and identifiers alone.
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
