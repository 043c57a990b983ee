package database

import "errors"

// ErrNotFound is returned when a lookup matches no row, or when a filtered
// update touches no row (wrong id or wrong owner). Callers distinguish it
// from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("database: not found")
