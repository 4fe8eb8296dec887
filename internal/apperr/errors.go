package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrCacheMiss    = errors.New("cache miss")
	ErrInvalidInput = errors.New("invalid input")
)
