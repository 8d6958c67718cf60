package league

import (
	"time"

	"elclasico/store"
)

const (
	PointsWin  = 3
	PointsDraw = 1
	PointsLoss = 0
)

// Outcome of a result from Real's point of view.
const (
	OutcomeReal  = "real"
	OutcomeBarca = "barca"
	OutcomeDraw  = "draw"
)

// Points awarded to a side scoring own against other.
func Points(own, other int) int {
	switch {
	case own > other:
		return PointsWin
	case own == other:
		return PointsDraw
	default:
		return PointsLoss
	}
}

func Outcome(scoreReal, scoreBarca int) string {
	switch {
	case scoreReal > scoreBarca:
		return OutcomeReal
	case scoreBarca > scoreReal:
		return OutcomeBarca
	default:
		return OutcomeDraw
	}
}

// IsPlayed reports whether m counts as a finished result.
func IsPlayed(m store.Match) bool {
	return m.Status == store.StatusCompleted && m.ScoreReal != nil && m.ScoreBarca != nil
}

// ApplyResult derives goals, conceded and points from the scores of a
// completed match and clears every result field of a scheduled one.
func ApplyResult(m *store.Match) {
	if !IsPlayed(*m) {
		if m.Status != store.StatusCompleted {
			m.ScoreReal, m.ScoreBarca = nil, nil
		}
		m.GoalsReal, m.GoalsBarca = nil, nil
		m.ConcededReal, m.ConcededBarca = nil, nil
		m.PointsReal, m.PointsBarca = nil, nil
		return
	}

	r, b := *m.ScoreReal, *m.ScoreBarca
	m.GoalsReal, m.GoalsBarca = ptr(r), ptr(b)
	m.ConcededReal, m.ConcededBarca = ptr(b), ptr(r)
	m.PointsReal, m.PointsBarca = ptr(Points(r, b)), ptr(Points(b, r))
}

// PredictionPoints scores p against a played match: 3 for the exact score,
// 1 for the right outcome, 0 otherwise. It returns nil while m is unplayed.
func PredictionPoints(p store.Prediction, m store.Match) *int {
	if !IsPlayed(m) {
		return nil
	}
	r, b := *m.ScoreReal, *m.ScoreBarca
	switch {
	case p.PredictedScoreReal == r && p.PredictedScoreBarca == b:
		return ptr(3)
	case Outcome(p.PredictedScoreReal, p.PredictedScoreBarca) == Outcome(r, b):
		return ptr(1)
	default:
		return ptr(0)
	}
}

// EffectiveStatus is the status a viewer should see: a scheduled match whose
// kickoff has passed reads as completed. Nothing is written back.
func EffectiveStatus(m store.Match, now time.Time) string {
	if m.Status == store.StatusScheduled && !m.MatchDatetime.After(now) {
		return store.StatusCompleted
	}
	return m.Status
}

func ptr[T any](v T) *T {
	return &v
}
