package capture

import "errors"

var (
	// ErrTransientCancel marks a capture attempt the compositor cancelled but
	// that may succeed when retried. It is logged, never returned from Run.
	ErrTransientCancel = errors.New("capture: frame cancelled (transient)")

	// ErrPermanentCancel is returned when the compositor permanently cancels
	// capture for the bound output, usually because the output went away.
	ErrPermanentCancel = errors.New("capture: frame cancelled (permanent)")

	// ErrProtocolViolation is returned for events outside the expected vocabulary.
	ErrProtocolViolation = errors.New("capture: protocol violation")

	// ErrIncompleteFrame is returned when ready arrives before every region.
	ErrIncompleteFrame = errors.New("capture: ready before frame complete")

	// ErrConnect is returned when the compositor cannot be reached.
	ErrConnect = errors.New("capture: connecting to compositor failed")

	// ErrUnsupported is returned when the compositor lacks the export-dmabuf protocol.
	ErrUnsupported = errors.New("capture: compositor does not support zwlr_export_dmabuf_manager_v1")

	// ErrOutputNotFound is returned when no output matches the configured name.
	ErrOutputNotFound = errors.New("capture: output not found")

	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("capture: unknown backend")
)
