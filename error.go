package adbm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed input, always before the store is touched.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable wraps every failure reported by the underlying driver.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDuplicateMigration is returned when registering an id that is already recorded.
	ErrDuplicateMigration = errors.New("migration already registered")
	// ErrDuplicateKey is returned by drivers when an insert clashes with an existing primary key.
	ErrDuplicateKey = errors.New("duplicate primary key")
)

var (
	ErrConfigNotProvided          = fmt.Errorf("%w: config not provided", ErrInvalidArgument)
	ErrDriverNotProvided          = fmt.Errorf("%w: driver not provided", ErrInvalidArgument)
	ErrManagerNotProvided         = fmt.Errorf("%w: manager not provided", ErrInvalidArgument)
	ErrMigrationNameNotProvided   = fmt.Errorf("%w: migration name not provided", ErrInvalidArgument)
	ErrMigrationIDNotProvided     = fmt.Errorf("%w: migration id not provided", ErrInvalidArgument)
	ErrMigrationFileAlreadyExists = errors.New("migration file already exists")
	ErrUnsupportedDriver          = fmt.Errorf("%w: unsupported driver", ErrInvalidArgument)
	ErrUnsupportedIndexOption     = errors.New("index option not supported by driver")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storeError keeps both ErrStoreUnavailable and the driver error in the chain.
func storeError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, fmt.Sprintf(format, args...), err)
}
