package migrate

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	// ConfigurationError reports scope settings that cannot support the
	// requested operation, e.g. no engines configured or metadata bound
	// to an engine name that does not exist.
	ConfigurationError struct {
		Msg string
	}

	// DirectoryError reports a problem preparing the on-disk migration
	// layout.
	DirectoryError struct {
		Path string
		Msg  string
	}

	// TransactionError reports a migration run that failed against one
	// database. Every database's transaction is rolled back when it is
	// returned.
	TransactionError struct {
		Database string
		Err      error
	}
)

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory error: %s: %s", e.Path, e.Msg)
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("migration transaction failed for database %q: %v", e.Database, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is (or wraps) a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsDirectoryError reports whether err is (or wraps) a DirectoryError.
func IsDirectoryError(err error) bool {
	var de *DirectoryError
	return errors.As(err, &de)
}

// IsTransactionError reports whether err is (or wraps) a
// TransactionError.
func IsTransactionError(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}

func newConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func newDirectoryError(path, format string, args ...any) error {
	return &DirectoryError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
