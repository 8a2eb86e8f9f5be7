package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrInternal     = errors.New("internal")

	// Ingestion pipeline failures.
	ErrFetch = errors.New("fetch failed")
	ErrParse = errors.New("parse failed")

	// ErrEmbedding wraps any upstream embedding provider failure. A batch
	// either fully succeeds or fails with this error.
	ErrEmbedding = errors.New("embedding failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

func IsEmbedding(err error) bool {
	return errors.Is(err, ErrEmbedding)
}
