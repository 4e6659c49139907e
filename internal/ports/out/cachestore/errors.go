package cachestore

import "errors"

// ErrNotFound indicates no entry matched the request identity.
var ErrNotFound = errors.New("cache entry not found")
