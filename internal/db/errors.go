package db

import "errors"

// ErrNotFound is returned by repository lookups that find no row.
var ErrNotFound = errors.New("not found")
