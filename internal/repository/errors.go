package repository

import "errors"

// ErrUnsupportedDriver is returned when the configured database driver is unknown.
var ErrUnsupportedDriver = errors.New("unsupported database driver")
