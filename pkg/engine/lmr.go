package engine

import "math"

// Late move reduction table indexed by depth and move number, log-shaped.
func initLmr() func(depth, moveNumber int) int {
	var reductions [64][64]int
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			reductions[d][m] = int(0.75 + math.Log(float64(d))*math.Log(float64(m))/2.25)
		}
	}
	return func(depth, moveNumber int) int {
		return reductions[clamp(depth, 1, 63)][clamp(moveNumber, 1, 63)]
	}
}
