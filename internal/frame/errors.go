package frame

import "errors"

var (
	// ErrProcessing is returned when a frame cannot be reduced to a luma value.
	ErrProcessing = errors.New("frame: processing failed")

	// ErrUnsupportedFormat is returned for pixel formats the processor cannot read.
	ErrUnsupportedFormat = errors.New("frame: unsupported pixel format")

	// ErrIncomplete is returned when a frame is used before all regions arrived.
	ErrIncomplete = errors.New("frame: incomplete")
)
