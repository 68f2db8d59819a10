package predictor

import "errors"

var (
	// ErrPersist is returned when a learned preference could not be stored.
	// The controller logs it and keeps the value in memory.
	ErrPersist = errors.New("predictor: persisting preference failed")

	// ErrInvalidBuckets is returned for a malformed bucket configuration.
	ErrInvalidBuckets = errors.New("predictor: invalid bucket configuration")

	// ErrInvalidKey is returned when a key string cannot be parsed.
	ErrInvalidKey = errors.New("predictor: invalid key")
)
