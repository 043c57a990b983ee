// Package fsrs implements the FSRS spaced-repetition scheduling function:
// given a card's schedule state, a compiled parameter set and a review
// rating, it produces the card's next schedule. The numeric update rule is
// kept entirely inside this package so the algorithm can be swapped or
// re-versioned without touching callers.
package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// Short-term steps for cards outside the long-term review cycle. These are
// fixed by the algorithm version rather than configured per user.
const (
	stepNewAgain   = time.Minute
	stepNewHard    = 5 * time.Minute
	stepNewGood    = 10 * time.Minute
	stepLearnAgain = 5 * time.Minute
	stepLearnHard  = 10 * time.Minute
	stepRelearn    = 5 * time.Minute
)

// Scheduler is a parameter set compiled for scheduling. Compilation
// validates the weights and precomputes derived constants; instances are
// immutable and safe for concurrent use.
type Scheduler struct {
	params    models.SchedulingParameters
	w         [models.WeightCount]float64
	forgetCap float64 // e^(w17*w18), caps post-lapse stability
}

// New compiles a parameter set into a Scheduler. Returns an error wrapping
// ErrInvalidParameters when the set cannot be compiled.
func New(p models.SchedulingParameters) (*Scheduler, error) {
	if err := validateParameters(p); err != nil {
		return nil, err
	}
	s := &Scheduler{params: p}
	copy(s.w[:], p.Weights)
	s.forgetCap = math.Exp(s.w[17] * s.w[18])
	return s, nil
}

// Params returns the parameter set this scheduler was compiled from.
func (s *Scheduler) Params() models.SchedulingParameters {
	return s.params
}

// SchedulePreview holds the candidate outcome for each of the four rating
// grades, computed without touching the card.
type SchedulePreview struct {
	Again models.Card `json:"again"`
	Hard  models.Card `json:"hard"`
	Good  models.Card `json:"good"`
	Easy  models.Card `json:"easy"`
}

// Next computes the card's schedule after one review with the given rating.
// The input card is not mutated. Next is a pure function of its arguments:
// repeating a call yields an identical result, fuzz included.
func (s *Scheduler) Next(card models.Card, rating models.Rating, now time.Time) (models.Card, error) {
	if !rating.IsValid() {
		return models.Card{}, fmt.Errorf("fsrs: invalid rating %d", int(rating))
	}
	if !card.State.IsValid() {
		return models.Card{}, fmt.Errorf("fsrs: unknown card state %d", int(card.State))
	}

	out := card
	elapsed := elapsedDays(card, now)
	out.ElapsedDays = elapsed
	out.Reps++
	reviewedAt := now
	out.LastReview = &reviewedAt

	if !s.params.EnableShortTerm {
		s.nextLongTerm(&out, card, rating, elapsed, now)
		return out, nil
	}

	switch card.State {
	case models.StateNew:
		s.nextFromNew(&out, rating, now)
	case models.StateLearning, models.StateRelearning:
		s.nextFromLearning(&out, card, rating, now)
	case models.StateReview:
		s.nextFromReview(&out, card, rating, elapsed, now)
	}
	return out, nil
}

// Preview computes all four candidate outcomes for the card at the given
// time. The due dates always satisfy Again <= Hard <= Good <= Easy.
func (s *Scheduler) Preview(card models.Card, now time.Time) (SchedulePreview, error) {
	again, err := s.Next(card, models.RatingAgain, now)
	if err != nil {
		return SchedulePreview{}, err
	}
	hard, err := s.Next(card, models.RatingHard, now)
	if err != nil {
		return SchedulePreview{}, err
	}
	good, err := s.Next(card, models.RatingGood, now)
	if err != nil {
		return SchedulePreview{}, err
	}
	easy, err := s.Next(card, models.RatingEasy, now)
	if err != nil {
		return SchedulePreview{}, err
	}
	return SchedulePreview{Again: again, Hard: hard, Good: good, Easy: easy}, nil
}

// nextFromNew handles a card's first-ever review.
func (s *Scheduler) nextFromNew(out *models.Card, rating models.Rating, now time.Time) {
	out.Stability = s.initStability(rating)
	out.Difficulty = s.initDifficulty(rating)

	switch rating {
	case models.RatingAgain:
		out.State = models.StateLearning
		s.dueInStep(out, now, stepNewAgain)
	case models.RatingHard:
		out.State = models.StateLearning
		s.dueInStep(out, now, stepNewHard)
	case models.RatingGood:
		out.State = models.StateLearning
		s.dueInStep(out, now, stepNewGood)
	case models.RatingEasy:
		// Graduate immediately, at least one day past what Good would
		// eventually earn so the grade ordering holds.
		easyIvl := s.nextInterval(out.Stability)
		goodIvl := s.nextInterval(s.initStability(models.RatingGood))
		if easyIvl <= goodIvl {
			easyIvl = goodIvl + 1
		}
		s.graduate(out, now, s.clampInterval(easyIvl))
	}
}

// nextFromLearning handles Learning and Relearning cards. Both use the
// same short-term steps; they differ only in the state they stay in.
func (s *Scheduler) nextFromLearning(out *models.Card, card models.Card, rating models.Rating, now time.Time) {
	preStability := card.Stability
	out.Stability = s.shortTermStability(preStability, rating)
	out.Difficulty = s.nextDifficulty(card.Difficulty, rating)

	switch rating {
	case models.RatingAgain:
		s.dueInStep(out, now, stepLearnAgain)
	case models.RatingHard:
		s.dueInStep(out, now, stepLearnHard)
	case models.RatingGood:
		s.graduate(out, now, s.nextInterval(out.Stability))
	case models.RatingEasy:
		easyIvl := s.nextInterval(out.Stability)
		goodIvl := s.nextInterval(s.shortTermStability(preStability, models.RatingGood))
		if easyIvl <= goodIvl {
			easyIvl = goodIvl + 1
		}
		s.graduate(out, now, s.clampInterval(easyIvl))
	}
}

// nextFromReview handles cards in the long-term review cycle.
func (s *Scheduler) nextFromReview(out *models.Card, card models.Card, rating models.Rating, elapsed int, now time.Time) {
	r := s.retrievability(max(elapsed, 1), card.Stability)
	// Stability formulas consume the pre-review difficulty.
	preDifficulty := card.Difficulty
	out.Difficulty = s.nextDifficulty(preDifficulty, rating)

	if rating == models.RatingAgain {
		out.Lapses++
		out.State = models.StateRelearning
		out.Stability = s.forgetStability(card.Stability, preDifficulty, r)
		s.dueInStep(out, now, stepRelearn)
		return
	}

	hardS := s.recallStability(card.Stability, preDifficulty, r, models.RatingHard)
	goodS := s.recallStability(card.Stability, preDifficulty, r, models.RatingGood)
	easyS := s.recallStability(card.Stability, preDifficulty, r, models.RatingEasy)

	hardIvl, goodIvl, easyIvl := s.reviewIntervals(hardS, goodS, easyS, card, now)

	switch rating {
	case models.RatingHard:
		out.Stability = hardS
		s.graduate(out, now, hardIvl)
	case models.RatingGood:
		out.Stability = goodS
		s.graduate(out, now, goodIvl)
	case models.RatingEasy:
		out.Stability = easyS
		s.graduate(out, now, easyIvl)
	}
}

// nextLongTerm schedules with short-term steps disabled: every rating lands
// the card in Review with a whole-day interval.
func (s *Scheduler) nextLongTerm(out *models.Card, card models.Card, rating models.Rating, elapsed int, now time.Time) {
	var againS, hardS, goodS, easyS float64

	if card.State == models.StateNew {
		againS = s.initStability(models.RatingAgain)
		hardS = s.initStability(models.RatingHard)
		goodS = s.initStability(models.RatingGood)
		easyS = s.initStability(models.RatingEasy)
		out.Difficulty = s.initDifficulty(rating)
	} else {
		r := s.retrievability(max(elapsed, 1), card.Stability)
		preDifficulty := card.Difficulty
		againS = s.forgetStability(card.Stability, preDifficulty, r)
		hardS = s.recallStability(card.Stability, preDifficulty, r, models.RatingHard)
		goodS = s.recallStability(card.Stability, preDifficulty, r, models.RatingGood)
		easyS = s.recallStability(card.Stability, preDifficulty, r, models.RatingEasy)
		out.Difficulty = s.nextDifficulty(preDifficulty, rating)
		if rating == models.RatingAgain && card.State == models.StateReview {
			out.Lapses++
		}
	}

	againIvl := s.nextInterval(againS)
	hardIvl := s.nextInterval(hardS)
	goodIvl := s.nextInterval(goodS)
	easyIvl := s.nextInterval(easyS)

	if againIvl > hardIvl {
		againIvl = hardIvl
	}
	if hardIvl <= againIvl {
		hardIvl = againIvl + 1
	}
	if goodIvl <= hardIvl {
		goodIvl = hardIvl + 1
	}
	if easyIvl <= goodIvl {
		easyIvl = goodIvl + 1
	}

	if s.params.EnableFuzz {
		seed := fuzzSeed(now, card.Reps, card.Stability)
		maxIvl := s.params.MaximumInterval
		againIvl = applyFuzz(s.clampInterval(againIvl), maxIvl, seed+int64(models.RatingAgain))
		hardIvl = applyFuzz(s.clampInterval(hardIvl), maxIvl, seed+int64(models.RatingHard))
		goodIvl = applyFuzz(s.clampInterval(goodIvl), maxIvl, seed+int64(models.RatingGood))
		easyIvl = applyFuzz(s.clampInterval(easyIvl), maxIvl, seed+int64(models.RatingEasy))
		if againIvl > hardIvl {
			againIvl = hardIvl
		}
		if hardIvl < againIvl {
			hardIvl = againIvl
		}
		if goodIvl < hardIvl {
			goodIvl = hardIvl
		}
		if easyIvl < goodIvl {
			easyIvl = goodIvl
		}
	}

	var chosenS float64
	var chosenIvl int
	switch rating {
	case models.RatingAgain:
		chosenS, chosenIvl = againS, againIvl
	case models.RatingHard:
		chosenS, chosenIvl = hardS, hardIvl
	case models.RatingGood:
		chosenS, chosenIvl = goodS, goodIvl
	case models.RatingEasy:
		chosenS, chosenIvl = easyS, easyIvl
	}
	out.Stability = chosenS
	s.graduate(out, now, s.clampInterval(chosenIvl))
}

// reviewIntervals turns the three recall stabilities into whole-day
// intervals with the grade ordering Hard <= Good < Easy enforced, fuzzed
// when enabled. The fuzz seed derives from the pre-review card and the
// review instant, so the same inputs always produce the same table.
func (s *Scheduler) reviewIntervals(hardS, goodS, easyS float64, card models.Card, now time.Time) (int, int, int) {
	hard := s.nextInterval(hardS)
	good := s.nextInterval(goodS)
	easy := s.nextInterval(easyS)
	hard, good, easy = s.orderIntervals(hard, good, easy)

	if s.params.EnableFuzz {
		seed := fuzzSeed(now, card.Reps, card.Stability)
		hard = applyFuzz(hard, s.params.MaximumInterval, seed+int64(models.RatingHard))
		good = applyFuzz(good, s.params.MaximumInterval, seed+int64(models.RatingGood))
		easy = applyFuzz(easy, s.params.MaximumInterval, seed+int64(models.RatingEasy))
		hard, good, easy = s.orderIntervals(hard, good, easy)
	}
	return hard, good, easy
}

// orderIntervals enforces Hard <= Good < Easy, then clamps. Ties can only
// reappear at the maximum-interval cap.
func (s *Scheduler) orderIntervals(hard, good, easy int) (int, int, int) {
	if hard > good {
		hard = good
	}
	if good <= hard {
		good = hard + 1
	}
	if easy <= good {
		easy = good + 1
	}
	return s.clampInterval(hard), s.clampInterval(good), s.clampInterval(easy)
}

func (s *Scheduler) clampInterval(days int) int {
	if days < 1 {
		return 1
	}
	if days > s.params.MaximumInterval {
		return s.params.MaximumInterval
	}
	return days
}

// dueInStep schedules a short-term step: minutes away, no whole-day interval.
func (s *Scheduler) dueInStep(out *models.Card, now time.Time, step time.Duration) {
	out.ScheduledDays = 0
	due := now.Add(step)
	out.Due = &due
}

// graduate puts the card in Review due the given number of days out.
func (s *Scheduler) graduate(out *models.Card, now time.Time, days int) {
	out.State = models.StateReview
	out.ScheduledDays = days
	due := now.Add(time.Duration(days) * 24 * time.Hour)
	out.Due = &due
}

// elapsedDays is the whole-day gap since the card's previous review, zero
// for a card that has never been reviewed.
func elapsedDays(card models.Card, now time.Time) int {
	if card.LastReview == nil {
		return 0
	}
	days := int(now.Sub(*card.LastReview).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
