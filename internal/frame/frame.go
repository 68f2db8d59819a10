package frame

import (
	"fmt"
	"sort"

	"golang.org/x/sys/unix"
)

// NoHandle marks a region whose descriptor has already been released.
const NoHandle = -1

// Region is one buffer object contributed by the compositor.
type Region struct {
	Index      uint32
	Handle     int
	Size       uint32
	Offset     uint32
	Stride     uint32
	PlaneIndex uint32
}

// Frame is one captured screen frame.
//
// A Frame is owned by a single goroutine: the capture loop creates it, mutates
// it from protocol callbacks, hands it to a Processor and releases it.
type Frame struct {
	Width    uint32
	Height   uint32
	Format   uint32
	Modifier uint64

	// ExpectedRegions is the object count announced by the metadata event.
	ExpectedRegions uint32

	hasMetadata bool
	regions     map[uint32]Region
	released    bool
	closeFn     func(int) error
}

// New returns an empty frame that closes descriptors with close(2).
func New() *Frame {
	return NewWithCloser(unix.Close)
}

// NewWithCloser returns an empty frame that releases descriptors with closeFn.
func NewWithCloser(closeFn func(int) error) *Frame {
	return &Frame{
		regions: make(map[uint32]Region),
		closeFn: closeFn,
	}
}

// SetMetadata records the frame dimensions and the number of regions to expect.
func (f *Frame) SetMetadata(width, height, format uint32, modifier uint64, regions uint32) {
	f.Width = width
	f.Height = height
	f.Format = format
	f.Modifier = modifier
	f.ExpectedRegions = regions
	f.hasMetadata = true
}

// AddRegion records a region by index. A region already stored at the same
// index is replaced and its descriptor closed. Regions added after Release
// are closed immediately.
func (f *Frame) AddRegion(r Region) error {
	if f.released {
		return f.closeHandle(r.Handle)
	}
	old, ok := f.regions[r.Index]
	f.regions[r.Index] = r
	if ok && old.Handle != r.Handle {
		return f.closeHandle(old.Handle)
	}
	return nil
}

// RegionCount returns the number of distinct regions recorded so far.
func (f *Frame) RegionCount() int {
	return len(f.regions)
}

// Regions returns the recorded regions ordered by index.
func (f *Frame) Regions() []Region {
	out := make([]Region, 0, len(f.regions))
	for _, r := range f.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Region returns the region stored at index.
func (f *Frame) Region(index uint32) (Region, bool) {
	r, ok := f.regions[index]
	return r, ok
}

// Complete reports whether metadata arrived and every expected index in
// [0, ExpectedRegions) holds a region.
func (f *Frame) Complete() bool {
	if !f.hasMetadata || uint32(len(f.regions)) != f.ExpectedRegions {
		return false
	}
	for idx := range f.regions {
		if idx >= f.ExpectedRegions {
			return false
		}
	}
	return true
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released
}

// Release closes every region descriptor. Calls after the first are no-ops.
// The first close error is returned; the remaining descriptors are still closed.
func (f *Frame) Release() error {
	if f.released {
		return nil
	}
	f.released = true

	var firstErr error
	for idx, r := range f.regions {
		if err := f.closeHandle(r.Handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing region %d: %w", idx, err)
		}
		r.Handle = NoHandle
		f.regions[idx] = r
	}
	return firstErr
}

func (f *Frame) closeHandle(fd int) error {
	if fd < 0 || f.closeFn == nil {
		return nil
	}
	return f.closeFn(fd)
}

// String summarises the frame for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("%dx%d format=%#08x regions=%d/%d", f.Width, f.Height, f.Format, len(f.regions), f.ExpectedRegions)
}
