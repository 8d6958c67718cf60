package league

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"elclasico/logger"
)

func TestCommentsSanitizedAndPublished(t *testing.T) {
	s := newTestStore(t)
	events := &recorder{}
	matches := NewMatches(s, nil, logger.Discard())
	fans := NewFans(s, events, logger.Discard())
	ctx := context.Background()
	m, _ := matches.Create(ctx, MatchInput{MatchDatetime: strp("2025-01-01T18:00:00Z"), Location: strp("Field A")})

	c, err := fans.AddComment(ctx, m.ID, Author{UserID: 7, Username: "pepe"}, "  <b>Hala</b> Madrid<script>x()</script> ")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if c.Comment != "Hala Madrid" || c.Username != "pepe" || c.MatchID != m.ID {
		t.Fatalf("comment = %+v", c)
	}

	comments, _ := fans.Comments(ctx, m.ID)
	if len(comments) != 1 {
		t.Fatalf("comments = %+v", comments)
	}
	if types := events.types(); len(types) != 1 || types[0] != EventCommentAdded {
		t.Fatalf("events = %v", types)
	}
}

func TestCommentValidation(t *testing.T) {
	s := newTestStore(t)
	fans := NewFans(s, nil, logger.Discard())
	m, _ := NewMatches(s, nil, logger.Discard()).Create(context.Background(), MatchInput{MatchDatetime: strp("2025-01-01T18:00:00Z"), Location: strp("A")})
	author := Author{UserID: 1, Username: "u"}

	if _, err := fans.AddComment(context.Background(), m.ID, author, "<i></i>  "); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("empty: %v", err)
	}
	if _, err := fans.AddComment(context.Background(), m.ID, author, strings.Repeat("a", MaxCommentLength+1)); !errors.Is(err, ErrCommentTooLong) {
		t.Errorf("too long: %v", err)
	}
	if _, err := fans.AddComment(context.Background(), 999, author, "hello"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing match: %v", err)
	}
	if _, err := fans.Comments(context.Background(), 999); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("list on missing match: %v", err)
	}
}

func TestReactionsOnePerUser(t *testing.T) {
	s := newTestStore(t)
	events := &recorder{}
	fans := NewFans(s, events, logger.Discard())
	ctx := context.Background()
	m, _ := NewMatches(s, nil, logger.Discard()).Create(ctx, MatchInput{MatchDatetime: strp("2025-01-01T18:00:00Z"), Location: strp("A")})

	if _, _, err := fans.React(ctx, m.ID, Author{UserID: 1, Username: "a"}, "👍"); !errors.Is(err, ErrInvalidReaction) {
		t.Fatalf("unknown type accepted: %v", err)
	}

	_, created, err := fans.React(ctx, m.ID, Author{UserID: 1, Username: "a"}, "🔥")
	if err != nil || !created {
		t.Fatalf("first: %v created=%v", err, created)
	}
	r, created, err := fans.React(ctx, m.ID, Author{UserID: 1, Username: "a"}, "❤️")
	if err != nil || created || r.Type != "❤️" {
		t.Fatalf("second: %+v %v created=%v", r, err, created)
	}
	fans.React(ctx, m.ID, Author{UserID: 2, Username: "b"}, "❤️")

	reactions, _ := fans.Reactions(ctx, m.ID)
	if len(reactions) != 2 {
		t.Fatalf("reactions = %+v", reactions)
	}
	counts := CountReactions(reactions)
	if counts["❤️"] != 2 || counts["🔥"] != 0 || len(counts) != len(ReactionTypes) {
		t.Fatalf("counts = %v", counts)
	}

	last := events.events[len(events.events)-1]
	payload, ok := last.Payload.(ReactionChangedPayload)
	if last.Type != EventReactionChanged || !ok || payload.Counts["❤️"] != 2 {
		t.Fatalf("last event = %+v", last)
	}
}

func TestPredictOncePerUser(t *testing.T) {
	s := newTestStore(t)
	fans := NewFans(s, nil, logger.Discard())
	ctx := context.Background()
	m, _ := NewMatches(s, nil, logger.Discard()).Create(ctx, MatchInput{MatchDatetime: strp("2030-01-01T18:00:00Z"), Location: strp("A")})
	author := Author{UserID: 1, Username: "a"}

	if _, err := fans.Predict(ctx, m.ID, author, -1, 0); !errors.Is(err, ErrInvalidPrediction) {
		t.Fatalf("negative: %v", err)
	}
	p, err := fans.Predict(ctx, m.ID, author, 2, 2)
	if err != nil || p.PointsEarned != nil {
		t.Fatalf("first: %+v %v", p, err)
	}
	if _, err := fans.Predict(ctx, m.ID, author, 1, 0); !errors.Is(err, ErrAlreadyPredicted) {
		t.Fatalf("second: %v", err)
	}
	predictions, _ := fans.Predictions(ctx, m.ID)
	if len(predictions) != 1 || predictions[0].PredictedScoreReal != 2 {
		t.Fatalf("predictions = %+v", predictions)
	}
}

func TestPredictClosesAtKickoff(t *testing.T) {
	s := newTestStore(t)
	fans := NewFans(s, nil, logger.Discard())
	ctx := context.Background()
	m, _ := NewMatches(s, nil, logger.Discard()).Create(ctx, MatchInput{MatchDatetime: strp("2030-01-01T18:00:00Z"), Location: strp("A")})

	fans.now = func() time.Time { return time.Date(2030, 1, 1, 18, 0, 0, 0, time.UTC) }
	if _, err := fans.Predict(ctx, m.ID, Author{UserID: 1, Username: "late"}, 1, 0); !errors.Is(err, ErrPredictionsClosed) {
		t.Fatalf("expected closed predictions at kickoff, got %v", err)
	}

	fans.now = func() time.Time { return time.Date(2030, 1, 1, 17, 59, 0, 0, time.UTC) }
	if _, err := fans.Predict(ctx, m.ID, Author{UserID: 1, Username: "early"}, 1, 0); err != nil {
		t.Fatalf("predict before kickoff: %v", err)
	}
}
