// Package capture drives the screen-capture side of lumen.
//
// A Capturer runs on the capture/predictor goroutine and pushes one luma
// sample per captured frame into a Sink. Two backends exist:
//
//   - Wlroots: a client of the zwlr_export_dmabuf_manager_v1 protocol bound to a
//     single wl_output.
//   - Disabled: never captures; optionally ticks the Sink so ambient-only
//     decisions keep flowing, and reconciles brightness reports as they come.
//
// # Capture state machine
//
// Each attempt moves through
//
//	Idle -> AwaitingMetadata -> AwaitingObjects -> Ready | Cancelled | Violated
//
// Metadata and object events may arrive in any order. Completeness is judged
// by region count, and only the protocol's ready event hands the frame to the
// Processor. Session.Run is an explicit loop: after a frame it waits the
// success delay, after a transient cancel the failure delay, and a permanent
// cancel, a processing failure or an unexpected event ends the loop with an
// error. Every attempt releases its frame descriptors and protocol object
// exactly once on every path.
//
// The protocol itself sits behind the Protocol interface so the state machine
// can be exercised with scripted event sequences.
package capture
