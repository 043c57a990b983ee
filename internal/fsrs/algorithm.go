package fsrs

import (
	"math"

	"github.com/example/flashdeck/pkg/models"
)

// retrievability computes the probability of recall after elapsedDays.
//
//	R(t, S) = (1 + t/(9*S))^(-1)
func (s *Scheduler) retrievability(elapsedDays int, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+float64(elapsedDays)/(9*stability), -1)
}

// nextInterval converts a stability into a whole-day interval honoring the
// requested retention, clamped to [1, MaximumInterval].
//
//	I(S, r) = round(9 * S * (1/r - 1))
func (s *Scheduler) nextInterval(stability float64) int {
	interval := 9 * stability * (1/s.params.RequestRetention - 1)
	days := int(math.Round(interval))
	if days < 1 {
		days = 1
	}
	if days > s.params.MaximumInterval {
		days = s.params.MaximumInterval
	}
	return days
}

// initStability returns the starting stability for a first rating.
//
//	S0(G) = w[G-1]
func (s *Scheduler) initStability(rating models.Rating) float64 {
	return clampStability(s.w[rating-1])
}

// initDifficulty returns the starting difficulty for a first rating.
//
//	D0(G) = w4 - e^(w5*(G-1)) + 1, clamped to [1, 10]
func (s *Scheduler) initDifficulty(rating models.Rating) float64 {
	return clampDifficulty(s.w[4] - math.Exp(s.w[5]*float64(rating-1)) + 1)
}

// nextDifficulty updates difficulty after a review, with mean reversion
// toward D0(Easy) so difficulty cannot drift without bound.
//
//	D'(D, G) = w7*D0(Easy) + (1-w7) * (D - w6*(G-3))
func (s *Scheduler) nextDifficulty(d float64, rating models.Rating) float64 {
	d0Easy := s.w[4] - math.Exp(s.w[5]*3) + 1
	next := s.w[7]*d0Easy + (1-s.w[7])*(d-s.w[6]*(float64(rating)-3))
	return clampDifficulty(next)
}

// recallStability computes stability after a successful recall (Hard/Good/Easy).
//
//	S'r = S * (e^(w8) * (11-D) * S^(-w9) * (e^(w10*(1-R)) - 1) * hardPenalty * easyBonus + 1)
func (s *Scheduler) recallStability(stability, difficulty, r float64, rating models.Rating) float64 {
	hardPenalty := 1.0
	if rating == models.RatingHard {
		hardPenalty = s.w[15]
	}
	easyBonus := 1.0
	if rating == models.RatingEasy {
		easyBonus = s.w[16]
	}
	next := stability * (math.Exp(s.w[8])*
		(11-difficulty)*
		math.Pow(stability, -s.w[9])*
		(math.Exp(s.w[10]*(1-r))-1)*
		hardPenalty*easyBonus +
		1)
	return clampStability(next)
}

// forgetStability computes stability after a lapse (Again), capped so the
// post-lapse value never exceeds S divided by e^(w17*w18).
//
//	S'f = min(w11 * D^(-w12) * ((S+1)^w13 - 1) * e^(w14*(1-R)), S/e^(w17*w18))
func (s *Scheduler) forgetStability(stability, difficulty, r float64) float64 {
	forgot := s.w[11] *
		math.Pow(difficulty, -s.w[12]) *
		(math.Pow(stability+1, s.w[13]) - 1) *
		math.Exp(s.w[14]*(1-r))
	return clampStability(math.Min(forgot, stability/s.forgetCap))
}

// shortTermStability adjusts stability for a same-state learning step.
//
//	S'st = S * e^(w17 * (G - 3 + w18))
func (s *Scheduler) shortTermStability(stability float64, rating models.Rating) float64 {
	return clampStability(stability * math.Exp(s.w[17]*(float64(rating)-3+s.w[18])))
}

func clampStability(v float64) float64 {
	return math.Max(MinStability, v)
}

func clampDifficulty(v float64) float64 {
	return math.Min(math.Max(v, 1), 10)
}
