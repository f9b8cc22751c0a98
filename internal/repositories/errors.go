package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
)

// postgres SQLSTATEs raised when concurrent writers could not be serialized
var pgConflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// IsConcurrencyError reports whether err is the store refusing to serialize
// a concurrent update.
func IsConcurrencyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgConflictCodes[pgErr.Code]
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsUniqueViolation reports whether err is a duplicate primary key or
// external reference.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// classify turns store concurrency failures and duplicate keys into
// ConflictError and leaves everything else untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConcurrencyError(err) || IsUniqueViolation(err) {
		return apperrors.NewConflict(op, err)
	}
	return err
}
