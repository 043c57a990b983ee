package fsrs

import (
	"math"
	"math/rand"
	"time"
)

type fuzzRange struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzDelta computes the half-width of the fuzz window for an interval.
//
//	delta = 1.0 + sum(factor * max(min(interval, end) - start, 0))
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// fuzzSeed derives a deterministic seed from the review moment and the
// card's pre-review progress, so the same (card, now) always fuzzes the
// same way and a committed review reproduces its preview.
func fuzzSeed(now time.Time, reps int, stability float64) int64 {
	return now.UnixNano() ^ int64(reps)<<32 ^ int64(math.Float64bits(stability))
}

// applyFuzz spreads a day-scale interval inside its fuzz window to keep
// reviews from clustering on the same day. Intervals below 2.5 days pass
// through untouched.
func applyFuzz(interval, maxInterval int, seed int64) int {
	if float64(interval) < 2.5 {
		return interval
	}

	ivl := float64(interval)
	delta := fuzzDelta(ivl)

	low := int(math.Round(ivl - delta))
	if low < 2 {
		low = 2
	}
	high := int(math.Round(ivl + delta))
	if high > maxInterval {
		high = maxInterval
	}
	if low > high {
		low = high
	}

	rng := rand.New(rand.NewSource(seed))
	return low + rng.Intn(high-low+1)
}
