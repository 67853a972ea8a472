package service

// LevelFor returns the highest level whose threshold the total reaches.
// Thresholds are configuration data and must be sorted ascending; this is
// the only level computation in the engine.
func LevelFor(thresholds []float64, totalPoints float64) int {
	level := 0
	for i, t := range thresholds {
		if totalPoints >= t {
			level = i + 1
		} else {
			break
		}
	}
	return level
}
