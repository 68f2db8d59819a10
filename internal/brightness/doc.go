// Package brightness owns the backlight device.
//
// Controller runs on its own goroutine. It applies decisions taken from a
// mailbox, and watches the device (fsnotify on the sysfs attributes plus a
// poll ticker, since kernel-side changes do not always raise inotify events)
// for changes it did not make itself. Those are reported back through a
// second mailbox so the predictor can learn from them.
//
// Percentages are converted to raw device steps with rounding. Comparisons
// are done on raw values so devices with fewer than 100 steps do not produce
// phantom reports.
package brightness
