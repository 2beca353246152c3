package storage

import "errors"

// ErrKeyNotFound is returned when no API key matches the requested hash or ID.
var ErrKeyNotFound = errors.New("api key not found")
