// Package leveling maps a cumulative experience total to a level and the progress inside it.
//
// Experience needed to leave level L is floor(100 * L^1.5). Users only ever store the
// cumulative total; level and in-level progress are always derived from it.
package leveling

import "math"

const BaseExperience = 100

// Stored totals are kept inside the int32 range of the experience column.
const (
	MaxExperience = math.MaxInt32
	MinExperience = math.MinInt32
)

// exactLimit keeps 10000*level^3 inside int64 for the integer square root path.
const exactLimit = 1 << 16

// Progress is the derived view of a cumulative experience total.
type Progress struct {
	Level           int `json:"level"`
	CurrentExp      int `json:"currentExp"`
	ExpForNextLevel int `json:"expForNextLevel"`
}

// RequiredExperience returns the experience needed to advance from level to level+1.
// Levels below 1 are treated as level 1.
func RequiredExperience(level int) int {
	if level < 1 {
		level = 1
	}
	if level > exactLimit {
		return int(math.Floor(BaseExperience * math.Pow(float64(level), 1.5)))
	}
	// floor(100 * l^1.5) == floor(sqrt(10000 * l^3)), computed without float rounding.
	l := int64(level)
	return int(isqrt(BaseExperience * BaseExperience * l * l * l))
}

// AddExperience returns total+delta, or false when the sum leaves
// [MinExperience, MaxExperience].
func AddExperience(total, delta int) (int, bool) {
	if delta > 0 && total > MaxExperience-delta {
		return total, false
	}
	if delta < 0 && total < MinExperience-delta {
		return total, false
	}
	next := total + delta
	if next > MaxExperience || next < MinExperience {
		return total, false
	}
	return next, true
}

// DeriveLevel walks the curve from level 1, spending experience while it covers the
// next requirement. Reaching a requirement exactly advances the level.
func DeriveLevel(totalExperience int) Progress {
	level := 1
	remaining := totalExperience
	need := RequiredExperience(level)
	for remaining >= need {
		remaining -= need
		level++
		need = RequiredExperience(level)
	}
	return Progress{Level: level, CurrentExp: remaining, ExpForNextLevel: need}
}

// TotalForLevel is the cumulative experience at which level is first reached.
func TotalForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += RequiredExperience(l)
	}
	return total
}

// Total reconstructs the cumulative experience a Progress was derived from.
func (p Progress) Total() int {
	return TotalForLevel(p.Level) + p.CurrentExp
}

func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
