// Package sensory maps free-text sensory descriptors onto a fixed five-point
// ordinal scale.
package sensory

import (
	"fmt"
	"strings"
)

// Level is one of the five canonical sensory levels.
type Level string

const (
	Low          Level = "Low"
	LowModerate  Level = "Low-Moderate"
	Moderate     Level = "Moderate"
	ModerateHigh Level = "Moderate-High"
	High         Level = "High"
)

var levels = []Level{Low, LowModerate, Moderate, ModerateHigh, High}

// Levels returns the canonical levels from lowest to highest.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// Rank returns the ordinal position of l (1 for Low, 5 for High) or 0 when l
// is not canonical.
func (l Level) Rank() int {
	for i, lv := range levels {
		if lv == l {
			return i + 1
		}
	}
	return 0
}

func (l Level) Valid() bool {
	return l.Rank() > 0
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel accepts only the canonical labels, case-sensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.TrimSpace(s))
	if !l.Valid() {
		return "", fmt.Errorf("unknown sensory level %q", s)
	}
	return l, nil
}
