package league

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"elclasico/apperr"
	"elclasico/store"

	"github.com/dustin/go-humanize"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrMatchNotFound   = apperr.New(apperr.NotFound, "match not found")
	ErrMissingDatetime = apperr.New(apperr.Validation, "match_datetime is required")
	ErrInvalidDatetime = apperr.New(apperr.Validation, "match_datetime must be an ISO 8601 date and time")
	ErrMissingLocation = apperr.New(apperr.Validation, "location is required")
	ErrInvalidStatus   = apperr.New(apperr.Validation, "status must be scheduled or completed")
	ErrScoresRequired  = apperr.New(apperr.Validation, "a completed match needs score_real and score_barca")
	ErrNegativeScore   = apperr.New(apperr.Validation, "scores cannot be negative")
)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup and surrounding whitespace from free text.
func cleanText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// ParseDatetime accepts RFC 3339 and the zone-less forms sent by datetime
// inputs; zone-less values are read as UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDatetime
}

type Matches struct {
	store  store.Store
	events Publisher
	log    *log.Helper
	now    func() time.Time
}

func NewMatches(s store.Store, events Publisher, logger log.Logger) *Matches {
	if events == nil {
		events = nopPublisher{}
	}
	return &Matches{
		store:  s,
		events: events,
		log:    log.NewHelper(log.With(logger, "module", "league/matches")),
		now:    time.Now,
	}
}

// List returns every match ordered by kickoff, then id.
func (s *Matches) List(ctx context.Context) ([]store.Match, error) {
	matches, err := s.store.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	sortByKickoff(matches)
	return matches, nil
}

func sortByKickoff(matches []store.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.MatchDatetime.Equal(b.MatchDatetime) {
			return a.MatchDatetime.Before(b.MatchDatetime)
		}
		return a.ID < b.ID
	})
}

func (s *Matches) Get(ctx context.Context, id int64) (*store.Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

func (s *Matches) Create(ctx context.Context, in MatchInput) (*store.Match, error) {
	if in.MatchDatetime == nil {
		return nil, ErrMissingDatetime
	}
	if in.Location == nil {
		return nil, ErrMissingLocation
	}

	m := &store.Match{Status: store.StatusScheduled}
	if err := in.apply(m); err != nil {
		return nil, err
	}

	created, err := s.store.CreateMatch(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	s.log.Infof("match %d created for %s at %s", created.ID, created.MatchDatetime.Format(time.RFC3339), created.Location)
	return created, nil
}

// Update patches the fields present in in. Results are recomputed from the
// scores and the match's predictions are rescored.
func (s *Matches) Update(ctx context.Context, id int64, in MatchInput) (*store.Match, error) {
	updated, err := s.store.UpdateMatch(ctx, id, in.apply)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	scored, err := s.store.ScorePredictions(ctx, id, func(p store.Prediction) *int {
		return PredictionPoints(p, *updated)
	})
	if err != nil {
		// The match change is already stored; the next update rescores.
		s.log.Errorw("msg", "match updated but predictions not rescored", "match_id", id, "err", err)
		return nil, fmt.Errorf("failed to score predictions: %w", err)
	}
	if IsPlayed(*updated) {
		s.log.Infof("match %d completed %d-%d, %d predictions scored", id, *updated.ScoreReal, *updated.ScoreBarca, scored)
	}

	s.events.Publish(&Event{Type: EventMatchUpdated, MatchID: id, Payload: updated})
	return updated, nil
}

func (s *Matches) Delete(ctx context.Context, id int64) (*store.Match, error) {
	deleted, err := s.store.DeleteMatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete match: %w", err)
	}
	s.log.Infof("match %d deleted", id)
	s.events.Publish(&Event{Type: EventMatchDeleted, MatchID: id, Payload: MatchDeletedPayload{ID: id}})
	return deleted, nil
}

type NextMatch struct {
	Match     *store.Match `json:"match"`
	Countdown string       `json:"countdown,omitempty"`
	StartsIn  int64        `json:"starts_in_seconds,omitempty"`
}

// Next returns the earliest scheduled match that has not kicked off yet.
func (s *Matches) Next(ctx context.Context) (*NextMatch, error) {
	matches, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range matches {
		m := matches[i]
		if m.Status != store.StatusScheduled || !m.MatchDatetime.After(now) {
			continue
		}
		return &NextMatch{
			Match:     &m,
			Countdown: humanize.RelTime(m.MatchDatetime, now, "ago", "from now"),
			StartsIn:  int64(m.MatchDatetime.Sub(now) / time.Second),
		}, nil
	}
	return &NextMatch{}, nil
}

func (s *Matches) Stats(ctx context.Context) (Stats, error) {
	matches, err := s.store.ListMatches(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list matches: %w", err)
	}
	return Compute(matches, s.now()), nil
}

func (in MatchInput) apply(m *store.Match) error {
	if in.MatchDatetime != nil {
		t, err := ParseDatetime(*in.MatchDatetime)
		if err != nil {
			return err
		}
		m.MatchDatetime = t
	}
	if in.Location != nil {
		m.Location = cleanText(*in.Location)
	}
	if in.Status != nil {
		m.Status = strings.ToLower(strings.TrimSpace(*in.Status))
	}
	if in.ScoreReal != nil {
		m.ScoreReal = ptr(*in.ScoreReal)
	}
	if in.ScoreBarca != nil {
		m.ScoreBarca = ptr(*in.ScoreBarca)
	}
	m.LineupReal = patchText(m.LineupReal, in.LineupReal)
	m.LineupBarca = patchText(m.LineupBarca, in.LineupBarca)
	m.CoachReal = patchText(m.CoachReal, in.CoachReal)
	m.CoachBarca = patchText(m.CoachBarca, in.CoachBarca)
	m.Announcement = patchText(m.Announcement, in.Announcement)

	if err := validateMatch(m); err != nil {
		return err
	}
	ApplyResult(m)
	return nil
}

// patchText replaces cur with in; an empty value removes the field.
func patchText(cur, in *string) *string {
	if in == nil {
		return cur
	}
	v := cleanText(*in)
	if v == "" {
		return nil
	}
	return &v
}

func validateMatch(m *store.Match) error {
	if m.MatchDatetime.IsZero() {
		return ErrMissingDatetime
	}
	if m.Location == "" {
		return ErrMissingLocation
	}
	if m.Status != store.StatusScheduled && m.Status != store.StatusCompleted {
		return ErrInvalidStatus
	}
	if (m.ScoreReal != nil && *m.ScoreReal < 0) || (m.ScoreBarca != nil && *m.ScoreBarca < 0) {
		return ErrNegativeScore
	}
	if m.Status == store.StatusCompleted && (m.ScoreReal == nil || m.ScoreBarca == nil) {
		return ErrScoresRequired
	}
	return nil
}
