package frame

// Processor reduces a complete frame to a luminance percentage in [0, 100].
// Implementations must accept a fresh frame on every call and must not keep
// references to its descriptors after returning.
type Processor interface {
	LumaPercent(f *Frame) (uint8, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(f *Frame) (uint8, error)

// LumaPercent calls fn(f).
func (fn ProcessorFunc) LumaPercent(f *Frame) (uint8, error) {
	return fn(f)
}
