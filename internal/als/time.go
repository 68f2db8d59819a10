package als

import (
	"fmt"
	"sort"
	"time"
)

type hourLux struct {
	hour int
	lux  float64
}

// TimeOfDay estimates ambient light from the wall clock.
type TimeOfDay struct {
	table []hourLux
	now   func() time.Time
}

// NewTimeOfDay builds a source from an hour -> lux table. Hours must be in
// [0, 23] and at least one entry is required.
func NewTimeOfDay(hourToLux map[int]float64) (*TimeOfDay, error) {
	if len(hourToLux) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTable)
	}
	table := make([]hourLux, 0, len(hourToLux))
	for h, lux := range hourToLux {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("%w: hour %d", ErrInvalidTable, h)
		}
		if lux < 0 {
			return nil, fmt.Errorf("%w: negative lux at hour %d", ErrInvalidTable, h)
		}
		table = append(table, hourLux{hour: h, lux: lux})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].hour < table[j].hour })

	return &TimeOfDay{table: table, now: time.Now}, nil
}

// Lux implements Source. The entry for the latest hour not after the current
// hour applies; before the first entry, the last entry of the previous day does.
func (t *TimeOfDay) Lux() (float64, error) {
	hour := t.now().Hour()
	value := t.table[len(t.table)-1].lux
	for _, e := range t.table {
		if e.hour > hour {
			break
		}
		value = e.lux
	}
	return value, nil
}
