package catalogs

import "fmt"

// LeveledStat is a per-level table: Values[level] is the stat at that level and UpgradeCosts[level]
// is the price of going from level to level+1. Levels start at 0.
type LeveledStat struct {
	Values       []float64 `json:"values"`
	UpgradeCosts []int     `json:"upgrade_costs,omitempty"`
}

func (s LeveledStat) MaxLevel() int { return len(s.Values) - 1 }

func (s LeveledStat) At(level int) (float64, bool) {
	if level < 0 || level >= len(s.Values) {
		return 0, false
	}
	return s.Values[level], true
}

// UpgradeCost is the cost to leave level; false at max level or when the table has no price.
func (s LeveledStat) UpgradeCost(level int) (int, bool) {
	if level < 0 || level >= len(s.UpgradeCosts) || level >= s.MaxLevel() {
		return 0, false
	}
	return s.UpgradeCosts[level], true
}

func (s LeveledStat) validate() error {
	if len(s.Values) == 0 {
		return fmt.Errorf("empty values")
	}
	for i, v := range s.Values {
		if v <= 0 {
			return fmt.Errorf("level %d: non-positive value %v", i, v)
		}
	}
	return nil
}
