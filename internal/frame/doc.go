// Package frame describes a single captured screen frame and the processors
// that reduce it to a luminance percentage.
//
// A Frame is built incrementally while protocol events arrive: metadata
// (dimensions, pixel format, the number of buffer objects to expect) and one
// Region per buffer object. Regions carry OS file descriptors that belong to
// the frame. Release closes every descriptor exactly once, whatever the outcome
// of the capture attempt, so long-running capture loops never leak them.
//
// Processors implement:
//
//	LumaPercent(f *Frame) (uint8, error)
//
// CPUProcessor maps the first plane of a dma-buf read-only and averages the
// Rec.709 luma of a sampled subset of its pixels.
package frame
