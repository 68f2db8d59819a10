package brightness

import "errors"

var (
	// ErrNoBacklight is returned when no backlight device can be found.
	ErrNoBacklight = errors.New("brightness: no backlight device found")

	// ErrDevice is returned when the device cannot be read or written.
	ErrDevice = errors.New("brightness: device error")
)
