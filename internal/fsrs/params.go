package fsrs

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/flashdeck/pkg/models"
)

// ErrInvalidParameters is returned by New when a parameter set cannot be
// compiled. Check with errors.Is.
var ErrInvalidParameters = errors.New("fsrs: invalid parameters")

// MinStability is the floor applied to every stability value.
const MinStability = 0.1

// DefaultWeights are the default model weights w[0]..w[18].
var DefaultWeights = [models.WeightCount]float64{
	0.4072,  // w0  initial stability for Again
	1.1829,  // w1  initial stability for Hard
	3.1262,  // w2  initial stability for Good
	15.4722, // w3  initial stability for Easy
	7.2102,  // w4  initial difficulty baseline
	0.5316,  // w5  initial difficulty slope
	1.0651,  // w6  difficulty delta per grade
	0.0046,  // w7  difficulty mean-reversion weight
	1.5418,  // w8  recall stability: exp(w8)
	0.1594,  // w9  recall stability: S^(-w9)
	1.01,    // w10 recall stability: exp(w10*(1-R)) - 1
	2.1791,  // w11 forget stability: multiplier
	0.0292,  // w12 forget stability: D^(-w12)
	0.2788,  // w13 forget stability: (S+1)^w13 - 1
	0.2229,  // w14 forget stability: exp(w14*(1-R))
	0.2604,  // w15 recall stability: hard penalty
	3.3928,  // w16 recall stability: easy bonus
	0.2223,  // w17 short-term stability factor
	0.6744,  // w18 short-term stability offset
}

// DefaultParameters returns the parameter set new users start from.
func DefaultParameters() models.SchedulingParameters {
	w := make([]float64, models.WeightCount)
	copy(w, DefaultWeights[:])
	return models.SchedulingParameters{
		RequestRetention: 0.9,
		MaximumInterval:  36500,
		Weights:          w,
		EnableFuzz:       true,
		EnableShortTerm:  true,
	}
}

// validateWeights checks that the weight vector has the expected length,
// contains only finite values, and has positive initial stabilities.
func validateWeights(w []float64) error {
	if len(w) != models.WeightCount {
		return fmt.Errorf("%w: got %d weights, want %d", ErrInvalidParameters, len(w), models.WeightCount)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] = %v", ErrInvalidParameters, i, v)
		}
	}
	for i := 0; i < 4; i++ {
		if w[i] <= 0 {
			return fmt.Errorf("%w: initial stability w[%d] = %v must be positive", ErrInvalidParameters, i, w[i])
		}
	}
	return nil
}

// validateParameters checks the full set before compilation.
func validateParameters(p models.SchedulingParameters) error {
	if p.RequestRetention <= 0 || p.RequestRetention > 1 {
		return fmt.Errorf("%w: request retention %v out of range (0, 1]", ErrInvalidParameters, p.RequestRetention)
	}
	if p.MaximumInterval <= 0 {
		return fmt.Errorf("%w: maximum interval %d must be positive", ErrInvalidParameters, p.MaximumInterval)
	}
	return validateWeights(p.Weights)
}
