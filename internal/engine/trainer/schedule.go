package trainer

import "math"

// learningRate returns the rate for 0-indexed optimizer step. The rate rises
// linearly from 0 over warmup steps, then either holds (constant) or decays
// linearly to 0 at total steps.
func learningRate(base float64, schedule string, step, warmup, total int) float64 {
	if step < warmup {
		return base * float64(step) / float64(max(1, warmup))
	}
	if schedule == ScheduleConstant {
		return base
	}
	return base * math.Max(0, float64(total-step)/float64(max(1, total-warmup)))
}
