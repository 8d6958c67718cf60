package league

const (
	EventMatchUpdated    = "match_updated"
	EventMatchDeleted    = "match_deleted"
	EventCommentAdded    = "comment_added"
	EventReactionChanged = "reaction_changed"
	EventPredictionAdded = "prediction_added"
)

type Event struct {
	Type    string      `json:"type"`
	MatchID int64       `json:"matchId"`
	Payload interface{} `json:"payload"`
}

// Publisher fans events out to whoever is watching a match.
type Publisher interface {
	Publish(e *Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*Event) {}

// Author identifies the signed-in user behind a comment, reaction or
// prediction.
type Author struct {
	UserID   int64
	Username string
}

// MatchInput is a create or patch request. Nil fields are left untouched;
// derived result fields are never accepted from clients.
type MatchInput struct {
	MatchDatetime *string `json:"match_datetime"`
	Location      *string `json:"location"`
	Status        *string `json:"status"`
	ScoreReal     *int    `json:"score_real"`
	ScoreBarca    *int    `json:"score_barca"`
	LineupReal    *string `json:"lineup_real"`
	LineupBarca   *string `json:"lineup_barca"`
	CoachReal     *string `json:"coach_real"`
	CoachBarca    *string `json:"coach_barca"`
	Announcement  *string `json:"announcement"`
}

type MatchDeletedPayload struct {
	ID int64 `json:"id"`
}

type ReactionChangedPayload struct {
	Reaction interface{}    `json:"reaction"`
	Counts   map[string]int `json:"counts"`
}
