package storage

import "errors"

// ErrRunNotFound is returned when no stored run has the requested ID
var ErrRunNotFound = errors.New("screening run not found")
