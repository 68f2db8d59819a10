package als

import "errors"

var (
	// ErrUnavailable is returned when no current lux reading exists.
	ErrUnavailable = errors.New("als: reading unavailable")

	// ErrNoSensor is returned when no illuminance device can be found.
	ErrNoSensor = errors.New("als: no illuminance sensor found")

	// ErrInvalidTable is returned for an empty or out-of-range hour table.
	ErrInvalidTable = errors.New("als: invalid hour_to_lux table")

	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("als: unknown backend")
)
