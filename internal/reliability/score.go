// Package reliability maintains a freelancer's reliability score: the running
// mean of every rating they have received, scaled to 0-100.
package reliability

import (
	"errors"
	"fmt"
)

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

const (
	MinRating = 1
	MaxRating = 5
)

// State is the part of a profile the score is computed from.
type State struct {
	Score       int
	Count       int
	PointsTotal int64
}

// Points converts a 1-5 rating to percentage points (rating/5*100).
func Points(rating int) (int, error) {
	if rating < MinRating || rating > MaxRating {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return rating * 20, nil
}

// Next folds one rating into s. The score is recomputed from the exact sum of
// points so repeated rounding never accumulates. Rows written before the sum
// was tracked (count > 0, total 0) take one RunningMean step, which also
// backfills the total from score*count.
func Next(s State, rating int) (State, error) {
	p, err := Points(rating)
	if err != nil {
		return s, err
	}
	count := s.Count + 1
	if s.Count > 0 && s.PointsTotal == 0 {
		score, err := RunningMean(s.Score, s.Count, rating)
		if err != nil {
			return s, err
		}
		return State{
			Score:       score,
			Count:       count,
			PointsTotal: int64(s.Score)*int64(s.Count) + int64(p),
		}, nil
	}
	total := s.PointsTotal + int64(p)
	return State{
		Score:       int(roundDiv(total, int64(count))),
		Count:       count,
		PointsTotal: total,
	}, nil
}

// RunningMean applies one update of round((score*count + p) / (count+1)).
func RunningMean(score, count, rating int) (int, error) {
	p, err := Points(rating)
	if err != nil {
		return score, err
	}
	return int(roundDiv(int64(score)*int64(count)+int64(p), int64(count)+1)), nil
}

// roundDiv divides non-negative n by positive d, rounding halves up.
func roundDiv(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
