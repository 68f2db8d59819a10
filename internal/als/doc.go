// Package als provides ambient light sources.
//
// Every backend answers one question, "how many lux right now?", through
// Source.Lux. A backend that cannot answer returns ErrUnavailable and the
// predictor falls back to screen content alone. Reads never block on the
// network: the MQTT backend hands readings over from the client's goroutine
// through a latest-wins mailbox and Lux only drains it.
package als
