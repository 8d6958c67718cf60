package league

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"elclasico/apperr"
	"elclasico/store"

	"github.com/go-kratos/kratos/v2/log"
)

const MaxCommentLength = 1000

// ReactionTypes lists the emoji a fan can react with.
var ReactionTypes = []string{"🔥", "⚽", "👏", "😢", "😂", "❤️"}

var (
	ErrEmptyComment      = apperr.New(apperr.Validation, "comment cannot be empty")
	ErrCommentTooLong    = apperr.Newf(apperr.Validation, "comment cannot be longer than %d characters", MaxCommentLength)
	ErrInvalidReaction   = apperr.New(apperr.Validation, "unknown reaction type")
	ErrInvalidPrediction = apperr.New(apperr.Validation, "predicted scores must be between 0 and 99")
	ErrPredictionsClosed = apperr.New(apperr.Validation, "predictions are closed for this match")
	ErrAlreadyPredicted  = apperr.New(apperr.Validation, "you already made a prediction for this match")
)

// Fans handles comments, reactions and predictions on a match.
type Fans struct {
	store  store.Store
	events Publisher
	log    *log.Helper
	now    func() time.Time
}

func NewFans(s store.Store, events Publisher, logger log.Logger) *Fans {
	if events == nil {
		events = nopPublisher{}
	}
	return &Fans{
		store:  s,
		events: events,
		log:    log.NewHelper(log.With(logger, "module", "league/fans")),
		now:    time.Now,
	}
}

func (f *Fans) match(ctx context.Context, matchID int64) (*store.Match, error) {
	m, err := f.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

func (f *Fans) Comments(ctx context.Context, matchID int64) ([]store.Comment, error) {
	if _, err := f.match(ctx, matchID); err != nil {
		return nil, err
	}
	comments, err := f.store.ListComments(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (f *Fans) AddComment(ctx context.Context, matchID int64, author Author, text string) (*store.Comment, error) {
	text = cleanText(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if _, err := f.match(ctx, matchID); err != nil {
		return nil, err
	}

	c, err := f.store.CreateComment(ctx, &store.Comment{
		MatchID:  matchID,
		UserID:   author.UserID,
		Username: author.Username,
		Comment:  text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	f.events.Publish(&Event{Type: EventCommentAdded, MatchID: matchID, Payload: c})
	return c, nil
}

func (f *Fans) Reactions(ctx context.Context, matchID int64) ([]store.Reaction, error) {
	if _, err := f.match(ctx, matchID); err != nil {
		return nil, err
	}
	reactions, err := f.store.ListReactions(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	return reactions, nil
}

// CountReactions tallies reactions per type; every known type is present.
func CountReactions(reactions []store.Reaction) map[string]int {
	counts := make(map[string]int, len(ReactionTypes))
	for _, t := range ReactionTypes {
		counts[t] = 0
	}
	for _, r := range reactions {
		counts[r.Type]++
	}
	return counts
}

func validReaction(t string) bool {
	for _, allowed := range ReactionTypes {
		if t == allowed {
			return true
		}
	}
	return false
}

// React records author's reaction, replacing any earlier one on the match.
func (f *Fans) React(ctx context.Context, matchID int64, author Author, reactionType string) (*store.Reaction, bool, error) {
	if !validReaction(reactionType) {
		return nil, false, ErrInvalidReaction
	}
	if _, err := f.match(ctx, matchID); err != nil {
		return nil, false, err
	}

	r, created, err := f.store.UpsertReaction(ctx, &store.Reaction{
		MatchID:  matchID,
		UserID:   author.UserID,
		Username: author.Username,
		Type:     reactionType,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save reaction: %w", err)
	}

	if all, err := f.store.ListReactions(ctx, matchID); err == nil {
		f.events.Publish(&Event{
			Type:    EventReactionChanged,
			MatchID: matchID,
			Payload: ReactionChangedPayload{Reaction: r, Counts: CountReactions(all)},
		})
	} else {
		f.log.Warnf("failed to count reactions for match %d: %v", matchID, err)
	}
	return r, created, nil
}

func (f *Fans) Predictions(ctx context.Context, matchID int64) ([]store.Prediction, error) {
	if _, err := f.match(ctx, matchID); err != nil {
		return nil, err
	}
	predictions, err := f.store.ListPredictions(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return predictions, nil
}

// Predict stores author's only prediction for a match that has not kicked off.
func (f *Fans) Predict(ctx context.Context, matchID int64, author Author, scoreReal, scoreBarca int) (*store.Prediction, error) {
	if scoreReal < 0 || scoreBarca < 0 || scoreReal > 99 || scoreBarca > 99 {
		return nil, ErrInvalidPrediction
	}
	m, err := f.match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if EffectiveStatus(*m, f.now()) == store.StatusCompleted {
		return nil, ErrPredictionsClosed
	}

	p, err := f.store.CreatePrediction(ctx, &store.Prediction{
		MatchID:             matchID,
		UserID:              author.UserID,
		Username:            author.Username,
		PredictedScoreReal:  scoreReal,
		PredictedScoreBarca: scoreBarca,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrAlreadyPredicted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	f.log.Debugf("prediction %d-%d by %s on match %d", scoreReal, scoreBarca, author.Username, matchID)
	f.events.Publish(&Event{Type: EventPredictionAdded, MatchID: matchID, Payload: p})
	return p, nil
}

type LeaderboardEntry struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Points      int    `json:"points"`
	Predictions int    `json:"predictions"`
	Exact       int    `json:"exact"`
}

// Leaderboard ranks users by the points their scored predictions earned.
func (f *Fans) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	matches, err := f.store.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	byUser := map[int64]*LeaderboardEntry{}
	var order []int64
	for _, m := range matches {
		predictions, err := f.store.ListPredictions(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list predictions: %w", err)
		}
		for _, p := range predictions {
			e, ok := byUser[p.UserID]
			if !ok {
				e = &LeaderboardEntry{UserID: p.UserID}
				byUser[p.UserID] = e
				order = append(order, p.UserID)
			}
			e.Username = p.Username
			e.Predictions++
			if p.PointsEarned != nil {
				e.Points += *p.PointsEarned
				if *p.PointsEarned == 3 {
					e.Exact++
				}
			}
		}
	}
	entries := make([]LeaderboardEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byUser[id])
	}
	sort.SliceStable(entries, func(i, j int) bool { return ranksAbove(entries[i], entries[j]) })
	return entries, nil
}

func ranksAbove(a, b LeaderboardEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Exact != b.Exact {
		return a.Exact > b.Exact
	}
	return a.UserID < b.UserID
}

