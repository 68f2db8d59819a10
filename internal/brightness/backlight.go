package brightness

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultBacklightRoot is the sysfs class directory for backlights.
const DefaultBacklightRoot = "/sys/class/backlight"

const (
	attrBrightness       = "brightness"
	attrActualBrightness = "actual_brightness"
	attrMaxBrightness    = "max_brightness"
)

// Device is a brightness sink measured in raw steps from 0 to Max.
type Device interface {
	Max() uint64
	Read() (uint64, error)
	Write(raw uint64) error
}

// Backlight is a sysfs backlight device.
type Backlight struct {
	dir string
	max uint64
}

// OpenBacklight opens the backlight at dir. An empty dir selects the first
// device under DefaultBacklightRoot.
func OpenBacklight(dir string) (*Backlight, error) {
	if dir == "" {
		found, err := Discover(DefaultBacklightRoot)
		if err != nil {
			return nil, err
		}
		dir = found
	}

	maxRaw, err := readUint(filepath.Join(dir, attrMaxBrightness))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBacklight, err)
	}
	if maxRaw == 0 {
		return nil, fmt.Errorf("%w: %s reports max_brightness 0", ErrNoBacklight, dir)
	}
	return &Backlight{dir: dir, max: maxRaw}, nil
}

// Discover returns the first backlight directory under root.
func Discover(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoBacklight, err)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, attrMaxBrightness)); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w under %s", ErrNoBacklight, root)
}

// Dir returns the device directory.
func (b *Backlight) Dir() string {
	return b.dir
}

// Max implements Device.
func (b *Backlight) Max() uint64 {
	return b.max
}

// Read implements Device. actual_brightness is preferred because it reflects
// what the hardware is doing; brightness is the fallback.
func (b *Backlight) Read() (uint64, error) {
	v, err := readUint(filepath.Join(b.dir, attrActualBrightness))
	if err == nil {
		return v, nil
	}
	v, err = readUint(filepath.Join(b.dir, attrBrightness))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return v, nil
}

// Write implements Device.
func (b *Backlight) Write(raw uint64) error {
	if raw > b.max {
		raw = b.max
	}
	path := filepath.Join(b.dir, attrBrightness)
	if err := os.WriteFile(path, []byte(strconv.FormatUint(raw, 10)), 0); err != nil {
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return nil
}

// WatchPaths returns the attributes worth watching for external changes.
func (b *Backlight) WatchPaths() []string {
	return []string{
		filepath.Join(b.dir, attrBrightness),
		filepath.Join(b.dir, attrActualBrightness),
	}
}

func readUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}

// ToRaw converts a percentage to device steps, rounding to nearest.
func ToRaw(percent uint8, maxRaw uint64) uint64 {
	if percent > 100 {
		percent = 100
	}
	return (uint64(percent)*maxRaw + 50) / 100
}

// ToPercent converts device steps to a percentage, rounding to nearest.
func ToPercent(raw, maxRaw uint64) uint8 {
	if maxRaw == 0 {
		return 0
	}
	if raw >= maxRaw {
		return 100
	}
	return uint8((raw*100 + maxRaw/2) / maxRaw)
}
