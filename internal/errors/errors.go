package errors

import (
	"errors"
	"fmt"
)

// Common error types for the shell
var (
	// Configuration errors
	ErrMissingSetting = errors.New("missing setting")
	ErrInvalidSetting = errors.New("invalid setting")

	// Identity errors
	ErrInitializeFailed  = errors.New("identity initialisation failed")
	ErrNotInitialized    = errors.New("identity client not initialised")
	ErrUnsupportedOnLoad = errors.New("unsupported onLoad policy")
	ErrNoSession         = errors.New("no authenticated session")
	ErrRefreshFailed     = errors.New("token refresh failed")
	ErrInvalidToken      = errors.New("invalid token")

	// Lifecycle errors
	ErrAlreadyStarted  = errors.New("session already started")
	ErrAlreadyMounted  = errors.New("shell already mounted")
	ErrReloadRequested = errors.New("reload requested")

	// API errors
	ErrInvalidFileType = errors.New("files must be of type '.xlsx'")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotFound        = errors.New("file not found")
)

// Wrapf prefixes err with a formatted operation tag. A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether err wraps target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain assignable to target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
