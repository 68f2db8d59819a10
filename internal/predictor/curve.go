package predictor

import "math"

// Default returns the brightness used for a key without a learned
// preference. It depends on the key only, rises with both lux and luma, and
// stays within [0, 100].
//
// With lux:    10 + 70*luxFrac + 20*lumaFrac
// Without lux: 20 + 60*lumaFrac
func (d *Discretizer) Default(k Key) uint8 {
	lumaFrac := 0.5
	if k.Luma >= 0 {
		lumaFrac = (float64(min(k.Luma, d.luma-1)) + 0.5) / float64(d.luma)
	}

	idx := -1
	for i, b := range d.lux {
		if b.Name == k.Lux {
			idx = i
			break
		}
	}

	var v float64
	if idx < 0 {
		v = 20 + 60*lumaFrac
	} else {
		luxFrac := 0.5
		if len(d.lux) > 1 {
			luxFrac = float64(idx) / float64(len(d.lux)-1)
		}
		v = 10 + 70*luxFrac + 20*lumaFrac
	}
	return clampPercent(v)
}

func clampPercent(v float64) uint8 {
	return uint8(math.Min(100, math.Max(0, math.Round(v))))
}
