package store

import "errors"

// ErrNotFound is returned by lookups that match no stored record.
var ErrNotFound = errors.New("record not found")
