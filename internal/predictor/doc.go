// Package predictor decides screen brightness and learns from the user.
//
// Each decision cycle combines the latest luma sample (pushed by the capture
// loop) with an ambient light reading (pulled from an als.Source) and maps
// the pair onto a coarse Key: a named lux bucket and a luma bucket. A learned
// preference for the key wins; otherwise a deterministic default curve is
// used. Only changed values are sent to the brightness controller.
//
// # Override reconciliation
//
// The brightness controller reports every brightness change it did not apply
// itself. A report that matches a decision emitted within the settle window
// is an echo of lumen's own actuation and is ignored. Anything else is a user
// override and becomes the preference for the key active at that moment.
//
// # Ownership
//
// A Controller belongs to the capture goroutine. Nothing in it is safe for
// concurrent use. Cross-goroutine traffic goes through two mailboxes only.
//
// Preferences are written through to a Store. A failed write is logged and
// the value is kept in memory for the rest of the run.
package predictor
