package predictor

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// NoLux is the lux bucket used when no ambient reading is available.
	NoLux = "none"

	// NoLuma is the luma bucket used for cycles without a frame.
	NoLuma = -1

	// DefaultLumaBuckets is the number of luma buckets when none is configured.
	DefaultLumaBuckets = 5
)

// LuxBucket is a named lux range starting at MinLux.
type LuxBucket struct {
	Name   string  `yaml:"name" json:"name"`
	MinLux float64 `yaml:"min_lux" json:"min_lux"`
}

// DefaultLuxBuckets returns the built-in lux buckets, roughly logarithmic.
func DefaultLuxBuckets() []LuxBucket {
	return []LuxBucket{
		{Name: "night", MinLux: 0},
		{Name: "dark", MinLux: 5},
		{Name: "dim", MinLux: 20},
		{Name: "normal", MinLux: 100},
		{Name: "bright", MinLux: 500},
		{Name: "outdoors", MinLux: 2000},
	}
}

// Key identifies a lighting condition.
type Key struct {
	Lux  string
	Luma int
}

// String renders the key as "<lux>/<luma>", e.g. "dim/4".
func (k Key) String() string {
	return k.Lux + "/" + strconv.Itoa(k.Luma)
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	lux, luma, ok := strings.Cut(s, "/")
	if !ok || lux == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	n, err := strconv.Atoi(luma)
	if err != nil || n < NoLuma {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Lux: lux, Luma: n}, nil
}

// Discretizer maps readings onto keys and computes default brightness.
type Discretizer struct {
	lux  []LuxBucket
	luma int
}

// NewDiscretizer validates the bucket configuration. Lux buckets must have
// unique non-empty names and strictly ascending MinLux. An empty lux list
// selects DefaultLuxBuckets; lumaBuckets < 1 selects DefaultLumaBuckets.
func NewDiscretizer(lux []LuxBucket, lumaBuckets int) (*Discretizer, error) {
	if len(lux) == 0 {
		lux = DefaultLuxBuckets()
	}
	if lumaBuckets < 1 {
		lumaBuckets = DefaultLumaBuckets
	}

	seen := make(map[string]bool, len(lux))
	for i, b := range lux {
		switch {
		case b.Name == "" || strings.Contains(b.Name, "/"):
			return nil, fmt.Errorf("%w: bucket %d has invalid name %q", ErrInvalidBuckets, i, b.Name)
		case b.Name == NoLux:
			return nil, fmt.Errorf("%w: bucket name %q is reserved", ErrInvalidBuckets, NoLux)
		case seen[b.Name]:
			return nil, fmt.Errorf("%w: duplicate bucket %q", ErrInvalidBuckets, b.Name)
		case i > 0 && b.MinLux <= lux[i-1].MinLux:
			return nil, fmt.Errorf("%w: bucket %q min_lux not ascending", ErrInvalidBuckets, b.Name)
		}
		seen[b.Name] = true
	}

	return &Discretizer{
		lux:  append([]LuxBucket(nil), lux...),
		luma: lumaBuckets,
	}, nil
}

// Key discretises a reading. luxOK and lumaOK mark which signals are present.
func (d *Discretizer) Key(lux float64, luxOK bool, luma uint8, lumaOK bool) Key {
	k := Key{Lux: NoLux, Luma: NoLuma}
	if luxOK {
		k.Lux = d.lux[d.luxIndex(lux)].Name
	}
	if lumaOK {
		k.Luma = min(int(luma)*d.luma/100, d.luma-1)
	}
	return k
}

// luxIndex returns the last bucket whose MinLux <= lux; readings below the
// first bucket fall into it.
func (d *Discretizer) luxIndex(lux float64) int {
	idx := 0
	for i, b := range d.lux {
		if lux >= b.MinLux {
			idx = i
		}
	}
	return idx
}
