package als

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIORoot is where the kernel exposes industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

const (
	illuminanceInput  = "in_illuminance_input"
	illuminanceRaw    = "in_illuminance_raw"
	illuminanceScale  = "in_illuminance_scale"
	illuminanceOffset = "in_illuminance_offset"
)

// IIO reads an illuminance sensor through sysfs.
type IIO struct {
	dir string
}

// NewIIO opens the device directory dir. An empty dir searches DefaultIIORoot
// for the first device exposing illuminance.
func NewIIO(dir string) (*IIO, error) {
	if dir == "" {
		found, err := Discover(DefaultIIORoot)
		if err != nil {
			return nil, err
		}
		dir = found
	}
	if !hasIlluminance(dir) {
		return nil, fmt.Errorf("%w: %s", ErrNoSensor, dir)
	}
	return &IIO{dir: dir}, nil
}

// Discover returns the first iio:device* directory under root that exposes
// an illuminance channel.
func Discover(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", err
	}
	for _, dir := range matches {
		if hasIlluminance(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w under %s", ErrNoSensor, root)
}

func hasIlluminance(dir string) bool {
	for _, name := range []string{illuminanceInput, illuminanceRaw} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Dir returns the device directory in use.
func (s *IIO) Dir() string {
	return s.dir
}

// Lux implements Source. The processed input channel is preferred; otherwise
// raw * scale + offset is used.
func (s *IIO) Lux() (float64, error) {
	if v, err := s.read(illuminanceInput); err == nil {
		return clampLux(v), nil
	}

	raw, err := s.read(illuminanceRaw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	scale, err := s.read(illuminanceScale)
	if err != nil {
		scale = 1
	}
	offset, err := s.read(illuminanceOffset)
	if err != nil {
		offset = 0
	}
	return clampLux((raw + offset) * scale), nil
}

func (s *IIO) read(name string) (float64, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return v, nil
}

func clampLux(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
