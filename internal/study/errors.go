package study

import "errors"

var (
	// ErrParametersUnavailable means the user has no resolvable scheduling
	// parameters. It is fatal to the requested operation; substituting
	// defaults would silently change the user's schedule.
	ErrParametersUnavailable = errors.New("study: scheduling parameters unavailable")

	// ErrInvalidRating flags a rating outside the four defined grades.
	ErrInvalidRating = errors.New("study: invalid rating")

	// ErrInvalidCard flags a card whose schedule state is malformed.
	ErrInvalidCard = errors.New("study: invalid card")
)
