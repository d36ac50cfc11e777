package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("store unreachable")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUnknownDriver     = errors.New("unknown store driver")
)
