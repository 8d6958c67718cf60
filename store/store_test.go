package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Both implementations must behave the same way; each driver test calls
// runStoreTests with its own constructor.

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"missing records return nil", testMissingRecords},
		{"user ids are monotonic", testUserIDsMonotonic},
		{"duplicate username rejected", testDuplicateUsername},
		{"update and delete user", testUpdateDeleteUser},
		{"match round trip keeps absent fields absent", testMatchRoundTrip},
		{"match ids survive deletes", testMatchIDsAfterDelete},
		{"update match sets updated_at", testUpdateMatch},
		{"update missing match", testUpdateMissingMatch},
		{"reaction upsert keeps one per user", testReactionUpsert},
		{"second prediction rejected", testPredictionExclusive},
		{"score predictions", testScorePredictions},
		{"delete match cascades", testDeleteMatchCascades},
		{"settings", testSettings},
		{"update settings", testUpdateSettings},
		{"concurrent settings updates", testConcurrentSettingsUpdates},
		{"password reset consumed once", testPasswordReset},
		{"concurrent match updates", testConcurrentUpdates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func testMissingRecords(t *testing.T, s Store) {
	ctx := context.Background()
	if u, err := s.GetUserByUsername(ctx, "nobody"); err != nil || u != nil {
		t.Fatalf("expected nil user, got %v, %v", u, err)
	}
	if u, err := s.GetUserByEmail(ctx, ""); err != nil || u != nil {
		t.Fatalf("empty email must not match, got %v, %v", u, err)
	}
	if m, err := s.GetMatch(ctx, 42); err != nil || m != nil {
		t.Fatalf("expected nil match, got %v, %v", m, err)
	}
	if st, err := s.GetSettings(ctx); err != nil || st != nil {
		t.Fatalf("expected nil settings, got %v, %v", st, err)
	}
	if _, err := s.DeleteUser(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 0 {
		t.Fatalf("expected no users, got %v, %v", users, err)
	}
}

func testUserIDsMonotonic(t *testing.T, s Store) {
	ctx := context.Background()
	var last int64
	for i := 0; i < 3; i++ {
		u, err := s.CreateUser(ctx, &User{Username: fmt.Sprintf("fan%d", i), PasswordHash: "x", Role: RolePlayer})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if u.ID <= last {
			t.Fatalf("id %d not greater than %d", u.ID, last)
		}
		last = u.ID
	}
	if _, err := s.DeleteUser(ctx, last); err != nil {
		t.Fatalf("delete: %v", err)
	}
	u, err := s.CreateUser(ctx, &User{Username: "late", PasswordHash: "x", Role: RolePlayer})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID <= last {
		t.Fatalf("id %d reused after delete of %d", u.ID, last)
	}
}

func testDuplicateUsername(t *testing.T, s Store) {
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, &User{Username: "pepe", Email: "p@example.com", PasswordHash: "x", Role: RolePlayer}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, &User{Username: "pepe", PasswordHash: "y", Role: RolePlayer}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for username, got %v", err)
	}
	if _, err := s.CreateUser(ctx, &User{Username: "other", Email: "p@example.com", PasswordHash: "y", Role: RolePlayer}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}
	users, _ := s.ListUsers(ctx)
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
}

func testUpdateDeleteUser(t *testing.T, s Store) {
	ctx := context.Background()
	a, _ := s.CreateUser(ctx, &User{Username: "alpha", PasswordHash: "x", Role: RolePlayer})
	b, _ := s.CreateUser(ctx, &User{Username: "beta", PasswordHash: "x", Role: RolePlayer})

	updated, err := s.UpdateUser(ctx, a.ID, func(u *User) error {
		u.Role = RoleAdmin
		return nil
	})
	if err != nil || updated.Role != RoleAdmin {
		t.Fatalf("update: %v %v", updated, err)
	}

	if _, err := s.UpdateUser(ctx, a.ID, func(u *User) error {
		u.Username = b.Username
		return nil
	}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on rename, got %v", err)
	}

	sentinel := errors.New("stop")
	if _, err := s.UpdateUser(ctx, a.ID, func(u *User) error {
		u.Role = RolePlayer
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	got, _ := s.GetUserByID(ctx, a.ID)
	if got.Role != RoleAdmin {
		t.Fatalf("failed callback must not persist, role is %s", got.Role)
	}

	deleted, err := s.DeleteUser(ctx, b.ID)
	if err != nil || deleted.Username != "beta" {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if got, _ := s.GetUserByID(ctx, b.ID); got != nil {
		t.Fatalf("user still present after delete")
	}
}

func testMatchRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	created, err := s.CreateMatch(ctx, &Match{
		MatchDatetime: at("2025-05-10T18:00:00Z"),
		Location:      "Camp",
		Status:        StatusScheduled,
		CoachReal:     strp("Ana"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt != nil {
		t.Fatalf("unexpected timestamps: %+v", created)
	}

	got, err := s.GetMatch(ctx, created.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.ScoreReal != nil || got.ScoreBarca != nil || got.LineupReal != nil || got.Announcement != nil {
		t.Fatalf("absent fields came back present: %+v", got)
	}
	if got.CoachReal == nil || *got.CoachReal != "Ana" {
		t.Fatalf("coach lost: %+v", got)
	}
	if !got.MatchDatetime.Equal(created.MatchDatetime) || got.Location != "Camp" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func testMatchIDsAfterDelete(t *testing.T, s Store) {
	ctx := context.Background()
	first, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-01-01T10:00:00Z"), Location: "A", Status: StatusScheduled})
	second, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-01-02T10:00:00Z"), Location: "B", Status: StatusScheduled})
	if second.ID <= first.ID {
		t.Fatalf("ids not increasing: %d %d", first.ID, second.ID)
	}
	if _, err := s.DeleteMatch(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-01-03T10:00:00Z"), Location: "C", Status: StatusScheduled})
	if third.ID <= second.ID {
		t.Fatalf("id %d reused after deleting %d", third.ID, second.ID)
	}
}

func testUpdateMatch(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled})

	updated, err := s.UpdateMatch(ctx, m.ID, func(m *Match) error {
		m.Status = StatusCompleted
		m.ScoreReal, m.ScoreBarca = intp(2), intp(1)
		m.ID = 999
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != m.ID || updated.UpdatedAt == nil {
		t.Fatalf("id must be preserved and updated_at set: %+v", updated)
	}

	got, _ := s.GetMatch(ctx, m.ID)
	if got.Status != StatusCompleted || *got.ScoreReal != 2 || *got.ScoreBarca != 1 {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", m.CreatedAt, got.CreatedAt)
	}
}

func testUpdateMissingMatch(t *testing.T, s Store) {
	_, err := s.UpdateMatch(context.Background(), 77, func(m *Match) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testReactionUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled})

	first, created, err := s.UpsertReaction(ctx, &Reaction{MatchID: m.ID, UserID: 1, Username: "u", Type: "🔥"})
	if err != nil || !created {
		t.Fatalf("first reaction: %v created=%v", err, created)
	}
	second, created, err := s.UpsertReaction(ctx, &Reaction{MatchID: m.ID, UserID: 1, Username: "u", Type: "⚽"})
	if err != nil || created {
		t.Fatalf("second reaction: %v created=%v", err, created)
	}
	if second.ID != first.ID || second.Type != "⚽" {
		t.Fatalf("expected in-place update, got %+v", second)
	}
	if _, _, err := s.UpsertReaction(ctx, &Reaction{MatchID: m.ID, UserID: 2, Username: "v", Type: "😂"}); err != nil {
		t.Fatalf("other user: %v", err)
	}

	reactions, err := s.ListReactions(ctx, m.ID)
	if err != nil || len(reactions) != 2 {
		t.Fatalf("expected 2 reactions, got %v %v", reactions, err)
	}
}

func testPredictionExclusive(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled})

	p, err := s.CreatePrediction(ctx, &Prediction{MatchID: m.ID, UserID: 1, Username: "u", PredictedScoreReal: 2, PredictedScoreBarca: 1})
	if err != nil {
		t.Fatalf("first prediction: %v", err)
	}
	if p.PointsEarned != nil {
		t.Fatalf("points must start unset")
	}
	if _, err := s.CreatePrediction(ctx, &Prediction{MatchID: m.ID, UserID: 1, Username: "u", PredictedScoreReal: 0, PredictedScoreBarca: 0}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	predictions, _ := s.ListPredictions(ctx, m.ID)
	if len(predictions) != 1 || predictions[0].PredictedScoreReal != 2 {
		t.Fatalf("first prediction not kept: %+v", predictions)
	}
}

func testScorePredictions(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled})
	other, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-11T18:00:00Z"), Location: "Camp", Status: StatusScheduled})
	s.CreatePrediction(ctx, &Prediction{MatchID: m.ID, UserID: 1, Username: "a", PredictedScoreReal: 1})
	s.CreatePrediction(ctx, &Prediction{MatchID: m.ID, UserID: 2, Username: "b", PredictedScoreBarca: 1})
	s.CreatePrediction(ctx, &Prediction{MatchID: other.ID, UserID: 1, Username: "a"})

	n, err := s.ScorePredictions(ctx, m.ID, func(p Prediction) *int { return intp(int(p.UserID)) })
	if err != nil || n != 2 {
		t.Fatalf("score: n=%d err=%v", n, err)
	}
	for _, p := range mustPredictions(t, s, m.ID) {
		if p.PointsEarned == nil || *p.PointsEarned != int(p.UserID) {
			t.Fatalf("unexpected points: %+v", p)
		}
	}
	for _, p := range mustPredictions(t, s, other.ID) {
		if p.PointsEarned != nil {
			t.Fatalf("other match must stay unscored: %+v", p)
		}
	}
}

func mustPredictions(t *testing.T, s Store, matchID int64) []Prediction {
	t.Helper()
	ps, err := s.ListPredictions(context.Background(), matchID)
	if err != nil {
		t.Fatalf("list predictions: %v", err)
	}
	return ps
}

func testDeleteMatchCascades(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled})
	keep, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-11T18:00:00Z"), Location: "Camp", Status: StatusScheduled})

	s.CreateComment(ctx, &Comment{MatchID: m.ID, UserID: 1, Username: "u", Comment: "vamos"})
	s.CreateComment(ctx, &Comment{MatchID: keep.ID, UserID: 1, Username: "u", Comment: "visca"})
	s.UpsertReaction(ctx, &Reaction{MatchID: m.ID, UserID: 1, Username: "u", Type: "👏"})
	s.CreatePrediction(ctx, &Prediction{MatchID: m.ID, UserID: 1, Username: "u"})

	if _, err := s.DeleteMatch(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if cs, _ := s.ListComments(ctx, m.ID); len(cs) != 0 {
		t.Fatalf("comments not removed: %+v", cs)
	}
	if rs, _ := s.ListReactions(ctx, m.ID); len(rs) != 0 {
		t.Fatalf("reactions not removed: %+v", rs)
	}
	if ps, _ := s.ListPredictions(ctx, m.ID); len(ps) != 0 {
		t.Fatalf("predictions not removed: %+v", ps)
	}
	if cs, _ := s.ListComments(ctx, keep.ID); len(cs) != 1 {
		t.Fatalf("other match comments touched: %+v", cs)
	}
	if _, err := s.DeleteMatch(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testSettings(t *testing.T, s Store) {
	ctx := context.Background()
	want := Settings{SiteName: "Clasico", Database: "json", Theme: "dark"}
	want.Colors.RealMadrid = TeamColors{Primary: "#fff", Secondary: "#000"}
	want.Colors.Barcelona = TeamColors{Primary: "#00f", Secondary: "#f00"}
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.Theme = "light"
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := s.GetSettings(ctx)
	if err != nil || got == nil || *got != want {
		t.Fatalf("got %+v %v, want %+v", got, err, want)
	}
}

func testUpdateSettings(t *testing.T, s Store) {
	ctx := context.Background()
	defaults := Settings{SiteName: "Clasico", Database: "json", Theme: "dark"}

	got, err := s.UpdateSettings(ctx, defaults, func(st *Settings) error {
		st.Theme = "light"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := defaults
	want.Theme = "light"
	if *got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	boom := errors.New("boom")
	if _, err := s.UpdateSettings(ctx, defaults, func(st *Settings) error {
		st.SiteName = "lost"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	stored, err := s.GetSettings(ctx)
	if err != nil || stored == nil || *stored != want {
		t.Fatalf("stored %+v %v, want %+v", stored, err, want)
	}
}

func testConcurrentSettingsUpdates(t *testing.T, s Store) {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdateSettings(ctx, Settings{}, func(st *Settings) error {
				if i%2 == 0 {
					st.SiteName += "s"
				} else {
					st.Theme += "t"
				}
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.GetSettings(ctx)
	if len(got.SiteName) != writers/2 || len(got.Theme) != writers/2 {
		t.Fatalf("lost updates: siteName=%q theme=%q", got.SiteName, got.Theme)
	}
}

func testPasswordReset(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	s.CreatePasswordReset(ctx, PasswordReset{TokenHash: "live", UserID: 3, ExpiresAt: now.Add(time.Hour)})
	s.CreatePasswordReset(ctx, PasswordReset{TokenHash: "stale", UserID: 4, ExpiresAt: now.Add(-time.Minute)})

	r, err := s.ConsumePasswordReset(ctx, "live", now)
	if err != nil || r == nil || r.UserID != 3 {
		t.Fatalf("consume: %v %v", r, err)
	}
	if r, _ := s.ConsumePasswordReset(ctx, "live", now); r != nil {
		t.Fatalf("token consumed twice")
	}
	if r, _ := s.ConsumePasswordReset(ctx, "stale", now); r != nil {
		t.Fatalf("expired token accepted")
	}
}

func testConcurrentUpdates(t *testing.T, s Store) {
	ctx := context.Background()
	m, _ := s.CreateMatch(ctx, &Match{MatchDatetime: at("2025-05-10T18:00:00Z"), Location: "Camp", Status: StatusScheduled, ScoreReal: intp(0)})

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateMatch(ctx, m.ID, func(m *Match) error {
				*m.ScoreReal++
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetMatch(ctx, m.ID)
	if *got.ScoreReal != writers {
		t.Fatalf("lost updates: score_real=%d, want %d", *got.ScoreReal, writers)
	}
}

func TestRoleChecks(t *testing.T) {
	tests := []struct {
		role                     Role
		valid, admin, superadmin bool
	}{
		{RoleSuperadmin, true, true, true},
		{RoleAdmin, true, true, false},
		{RolePlayer, true, false, false},
		{Role("player"), false, false, false},
		{Role(""), false, false, false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v", tt.role, got)
		}
		if got := tt.role.IsAdmin(); got != tt.admin {
			t.Errorf("%q.IsAdmin() = %v", tt.role, got)
		}
		if got := tt.role.IsSuperadmin(); got != tt.superadmin {
			t.Errorf("%q.IsSuperadmin() = %v", tt.role, got)
		}
	}
}
