package frame

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// DRM fourcc codes understood by the CPU processor.
const (
	FormatXRGB8888 uint32 = 0x34325258 // XR24
	FormatARGB8888 uint32 = 0x34325241 // AR24
	FormatXBGR8888 uint32 = 0x34324258 // XB24
	FormatABGR8888 uint32 = 0x34324241 // AB24
)

// DefaultSampleStride is the pixel step used when none is configured.
const DefaultSampleStride = 8

// Rec.709 coefficients.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// CPUProcessor computes frame luma by mapping the first plane into memory.
type CPUProcessor struct {
	sampleStride int
	mmap         func(fd int, offset int64, length int, prot int, flags int) ([]byte, error)
	munmap       func(b []byte) error
}

// NewCPUProcessor returns a processor sampling every sampleStride-th pixel on
// every sampleStride-th row. Values below 1 select DefaultSampleStride.
func NewCPUProcessor(sampleStride int) *CPUProcessor {
	if sampleStride < 1 {
		sampleStride = DefaultSampleStride
	}
	return &CPUProcessor{
		sampleStride: sampleStride,
		mmap:         unix.Mmap,
		munmap:       unix.Munmap,
	}
}

// LumaPercent implements Processor.
func (p *CPUProcessor) LumaPercent(f *Frame) (uint8, error) {
	if !f.Complete() {
		return 0, fmt.Errorf("%w: %w (%s)", ErrProcessing, ErrIncomplete, f)
	}
	plane, ok := f.Region(0)
	if !ok || plane.Handle < 0 {
		return 0, fmt.Errorf("%w: plane 0 missing", ErrProcessing)
	}
	if f.Width == 0 || f.Height == 0 || plane.Stride == 0 {
		return 0, fmt.Errorf("%w: empty frame %s", ErrProcessing, f)
	}
	if !supportedFormat(f.Format) {
		return 0, fmt.Errorf("%w: %w %#08x", ErrProcessing, ErrUnsupportedFormat, f.Format)
	}

	length := int(plane.Offset) + int(plane.Stride)*int(f.Height)
	data, err := p.mmap(plane.Handle, 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return 0, fmt.Errorf("%w: mapping plane: %w", ErrProcessing, err)
	}
	defer p.munmap(data) //nolint:errcheck // read-only mapping

	luma, err := LumaFromPixels(data[plane.Offset:], int(f.Width), int(f.Height), int(plane.Stride), f.Format, p.sampleStride)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProcessing, err)
	}
	return luma, nil
}

// LumaFromPixels averages the Rec.709 luma of a 32-bit-per-pixel image,
// visiting every step-th pixel of every step-th row.
func LumaFromPixels(buf []byte, width, height, stride int, format uint32, step int) (uint8, error) {
	if !supportedFormat(format) {
		return 0, fmt.Errorf("%w %#08x", ErrUnsupportedFormat, format)
	}
	if width <= 0 || height <= 0 || stride < width*4 {
		return 0, fmt.Errorf("invalid geometry %dx%d stride %d", width, height, stride)
	}
	if len(buf) < stride*(height-1)+width*4 {
		return 0, fmt.Errorf("buffer too short: %d bytes for %dx%d stride %d", len(buf), width, height, stride)
	}
	if step < 1 {
		step = 1
	}

	rIdx, bIdx := 2, 0
	if format == FormatXBGR8888 || format == FormatABGR8888 {
		rIdx, bIdx = 0, 2
	}

	var sum float64
	var n int
	for y := 0; y < height; y += step {
		row := buf[y*stride:]
		for x := 0; x < width; x += step {
			px := row[x*4 : x*4+4]
			sum += lumaR*float64(px[rIdx]) + lumaG*float64(px[1]) + lumaB*float64(px[bIdx])
			n++
		}
	}

	pct := math.Round(sum / float64(n) / 255 * 100)
	return uint8(min(max(pct, 0), 100)), nil
}

func supportedFormat(format uint32) bool {
	switch format {
	case FormatXRGB8888, FormatARGB8888, FormatXBGR8888, FormatABGR8888:
		return true
	}
	return false
}
