package league

import (
	"testing"
	"time"

	"elclasico/store"
)

func completed(r, b int) store.Match {
	return store.Match{Status: store.StatusCompleted, ScoreReal: ptr(r), ScoreBarca: ptr(b)}
}

func TestApplyResultPoints(t *testing.T) {
	tests := []struct {
		name             string
		real, barca      int
		wantReal, wantBarca int
	}{
		{"real wins", 3, 1, 3, 0},
		{"barca wins", 0, 2, 0, 3},
		{"draw", 2, 2, 1, 1},
		{"goalless draw", 0, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := completed(tt.real, tt.barca)
			m.PointsReal = ptr(99)
			ApplyResult(&m)

			if *m.PointsReal != tt.wantReal || *m.PointsBarca != tt.wantBarca {
				t.Fatalf("points = %d/%d, want %d/%d", *m.PointsReal, *m.PointsBarca, tt.wantReal, tt.wantBarca)
			}
			if sum := *m.PointsReal + *m.PointsBarca; sum != 2 && sum != 3 {
				t.Fatalf("points sum %d outside {2,3}", sum)
			}
			if *m.GoalsReal != tt.real || *m.ConcededReal != tt.barca || *m.GoalsBarca != tt.barca || *m.ConcededBarca != tt.real {
				t.Fatalf("goals not derived from scores: %+v", m)
			}
		})
	}
}

func TestApplyResultClearsScheduled(t *testing.T) {
	m := completed(1, 0)
	ApplyResult(&m)
	m.Status = store.StatusScheduled
	ApplyResult(&m)

	if m.ScoreReal != nil || m.ScoreBarca != nil || m.PointsReal != nil || m.GoalsBarca != nil || m.ConcededReal != nil {
		t.Fatalf("scheduled match kept result fields: %+v", m)
	}
}

func TestPredictionPoints(t *testing.T) {
	m := completed(2, 1)
	tests := []struct {
		real, barca int
		want        int
	}{
		{2, 1, 3},
		{1, 0, 1},
		{3, 0, 1},
		{1, 1, 0},
		{0, 2, 0},
	}
	for _, tt := range tests {
		got := PredictionPoints(store.Prediction{PredictedScoreReal: tt.real, PredictedScoreBarca: tt.barca}, m)
		if got == nil || *got != tt.want {
			t.Errorf("prediction %d-%d: got %v, want %d", tt.real, tt.barca, got, tt.want)
		}
	}

	if got := PredictionPoints(store.Prediction{}, store.Match{Status: store.StatusScheduled}); got != nil {
		t.Errorf("unplayed match must not score, got %d", *got)
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	past := store.Match{Status: store.StatusScheduled, MatchDatetime: now.Add(-time.Hour)}
	future := store.Match{Status: store.StatusScheduled, MatchDatetime: now.Add(time.Hour)}

	if got := EffectiveStatus(past, now); got != store.StatusCompleted {
		t.Errorf("past match reads as %q", got)
	}
	if got := EffectiveStatus(future, now); got != store.StatusScheduled {
		t.Errorf("future match reads as %q", got)
	}
	if past.Status != store.StatusScheduled {
		t.Errorf("EffectiveStatus must not modify the match")
	}
}
