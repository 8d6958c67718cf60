package league

import (
	"sort"
	"time"

	"elclasico/store"
)

const formLength = 5

type TeamStats struct {
	Played         int `json:"played"`
	Wins           int `json:"wins"`
	Draws          int `json:"draws"`
	Losses         int `json:"losses"`
	GoalsFor       int `json:"goals_for"`
	GoalsAgainst   int `json:"goals_against"`
	GoalDifference int `json:"goal_difference"`
	Points         int `json:"points"`
}

type HeadToHead struct {
	Played    int `json:"played"`
	RealWins  int `json:"real_wins"`
	BarcaWins int `json:"barca_wins"`
	Draws     int `json:"draws"`
}

// Streak is the run of identical outcomes ending with the latest result.
type Streak struct {
	Outcome string `json:"outcome"`
	Length  int    `json:"length"`
}

type Stats struct {
	Year             int        `json:"year"`
	Real             TeamStats  `json:"real"`
	Barca            TeamStats  `json:"barca"`
	Leader           string     `json:"leader,omitempty"`
	AllTime          HeadToHead `json:"all_time"`
	Streak           *Streak    `json:"streak,omitempty"`
	Form             []string   `json:"form"`
	TotalMatches     int        `json:"total_matches"`
	CompletedMatches int        `json:"completed_matches"`
	UpcomingMatches  int        `json:"upcoming_matches"`
	TotalGoals       int        `json:"total_goals"`
}

// Compute derives every aggregate shown on the site from the full match list.
// Standings cover played matches in now's calendar year (UTC); the
// head-to-head record, streak and form cover all of them.
func Compute(matches []store.Match, now time.Time) Stats {
	now = now.UTC()
	st := Stats{Year: now.Year(), Form: []string{}, TotalMatches: len(matches)}

	var played []store.Match
	for _, m := range matches {
		if IsPlayed(m) {
			played = append(played, m)
			continue
		}
		if EffectiveStatus(m, now) == store.StatusScheduled {
			st.UpcomingMatches++
		}
	}
	st.CompletedMatches = len(played)

	for _, m := range played {
		r, b := *m.ScoreReal, *m.ScoreBarca
		st.TotalGoals += r + b

		st.AllTime.Played++
		switch Outcome(r, b) {
		case OutcomeReal:
			st.AllTime.RealWins++
		case OutcomeBarca:
			st.AllTime.BarcaWins++
		default:
			st.AllTime.Draws++
		}

		if m.MatchDatetime.UTC().Year() != st.Year {
			continue
		}
		st.Real.add(r, b, m.PointsReal)
		st.Barca.add(b, r, m.PointsBarca)
	}

	switch {
	case st.Real.Wins > st.Barca.Wins:
		st.Leader = OutcomeReal
	case st.Barca.Wins > st.Real.Wins:
		st.Leader = OutcomeBarca
	}

	sort.SliceStable(played, func(i, j int) bool {
		a, b := played[i], played[j]
		if !a.MatchDatetime.Equal(b.MatchDatetime) {
			return a.MatchDatetime.After(b.MatchDatetime)
		}
		return a.ID > b.ID
	})
	for i := 0; i < len(played) && i < formLength; i++ {
		st.Form = append(st.Form, Outcome(*played[i].ScoreReal, *played[i].ScoreBarca))
	}
	if len(played) > 0 {
		latest := Outcome(*played[0].ScoreReal, *played[0].ScoreBarca)
		st.Streak = &Streak{Outcome: latest}
		for _, m := range played {
			if Outcome(*m.ScoreReal, *m.ScoreBarca) != latest {
				break
			}
			st.Streak.Length++
		}
	}

	return st
}

func (t *TeamStats) add(own, other int, stored *int) {
	t.Played++
	t.GoalsFor += own
	t.GoalsAgainst += other
	t.GoalDifference = t.GoalsFor - t.GoalsAgainst

	switch {
	case own > other:
		t.Wins++
	case own == other:
		t.Draws++
	default:
		t.Losses++
	}

	if stored != nil {
		t.Points += *stored
	} else {
		t.Points += Points(own, other)
	}
}
