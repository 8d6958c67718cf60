package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. A single
// connection serialises writers; read-modify-write updates run in a
// transaction.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Users

const userColumns = "id, username, email, password_hash, role, created_at"

func scanUser(row scanner) (*User, error) {
	u := &User{}
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &createdAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, nil
	}
	return s.getUser(ctx, "email = ?", email)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	created := *u
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)",
		created.Username, created.Email, created.PasswordHash, string(created.Role), formatTime(created.CreatedAt),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: user %q", ErrDuplicate, created.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	created.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id int64, mutate func(u *User) error) (*User, error) {
	var updated *User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if err := mutate(u); err != nil {
			return err
		}
		u.ID = id
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET username = ?, email = ?, password_hash = ?, role = ? WHERE id = ?",
			u.Username, u.Email, u.PasswordHash, string(u.Role), id,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %q", ErrDuplicate, u.Username)
		}
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) (*User, error) {
	var deleted *User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Matches

const matchColumns = `id, match_datetime, location, status,
	score_real, score_barca, goals_real, goals_barca, conceded_real, conceded_barca, points_real, points_barca,
	lineup_real, lineup_barca, coach_real, coach_barca, announcement, created_at, updated_at`

func scanMatch(row scanner) (*Match, error) {
	m := &Match{}
	var datetime, createdAt string
	var updatedAt sql.NullString
	var scoreReal, scoreBarca, goalsReal, goalsBarca, concededReal, concededBarca, pointsReal, pointsBarca sql.NullInt64
	var lineupReal, lineupBarca, coachReal, coachBarca, announcement sql.NullString

	err := row.Scan(&m.ID, &datetime, &m.Location, &m.Status,
		&scoreReal, &scoreBarca, &goalsReal, &goalsBarca, &concededReal, &concededBarca, &pointsReal, &pointsBarca,
		&lineupReal, &lineupBarca, &coachReal, &coachBarca, &announcement, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if m.MatchDatetime, err = parseTime(datetime); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return nil, err
		}
		m.UpdatedAt = &t
	}

	m.ScoreReal, m.ScoreBarca = intPtr(scoreReal), intPtr(scoreBarca)
	m.GoalsReal, m.GoalsBarca = intPtr(goalsReal), intPtr(goalsBarca)
	m.ConcededReal, m.ConcededBarca = intPtr(concededReal), intPtr(concededBarca)
	m.PointsReal, m.PointsBarca = intPtr(pointsReal), intPtr(pointsBarca)
	m.LineupReal, m.LineupBarca = stringPtr(lineupReal), stringPtr(lineupBarca)
	m.CoachReal, m.CoachBarca = stringPtr(coachReal), stringPtr(coachBarca)
	m.Announcement = stringPtr(announcement)
	return m, nil
}

// matchValues lists the mutable columns in the order used by insert and update.
func matchValues(m *Match) []interface{} {
	return []interface{}{
		formatTime(m.MatchDatetime), m.Location, m.Status,
		nullInt(m.ScoreReal), nullInt(m.ScoreBarca), nullInt(m.GoalsReal), nullInt(m.GoalsBarca),
		nullInt(m.ConcededReal), nullInt(m.ConcededBarca), nullInt(m.PointsReal), nullInt(m.PointsBarca),
		nullString(m.LineupReal), nullString(m.LineupBarca), nullString(m.CoachReal), nullString(m.CoachBarca),
		nullString(m.Announcement),
	}
}

func (s *SQLiteStore) ListMatches(ctx context.Context) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+matchColumns+" FROM matches ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) CreateMatch(ctx context.Context, m *Match) (*Match, error) {
	created := *m
	created.CreatedAt = s.now().UTC()
	created.UpdatedAt = nil

	args := append(matchValues(&created), formatTime(created.CreatedAt))
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (match_datetime, location, status,
			score_real, score_barca, goals_real, goals_barca, conceded_real, conceded_barca, points_real, points_barca,
			lineup_real, lineup_barca, coach_real, coach_barca, announcement, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	created.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read match id: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) UpdateMatch(ctx context.Context, id int64, mutate func(m *Match) error) (*Match, error) {
	var updated *Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := scanMatch(tx.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get match: %w", err)
		}
		createdAt := m.CreatedAt
		if err := mutate(m); err != nil {
			return err
		}
		now := s.now().UTC()
		m.ID, m.CreatedAt, m.UpdatedAt = id, createdAt, &now

		args := append(matchValues(m), formatTime(now), id)
		_, err = tx.ExecContext(ctx, `
			UPDATE matches SET match_datetime = ?, location = ?, status = ?,
				score_real = ?, score_barca = ?, goals_real = ?, goals_barca = ?,
				conceded_real = ?, conceded_barca = ?, points_real = ?, points_barca = ?,
				lineup_real = ?, lineup_barca = ?, coach_real = ?, coach_barca = ?, announcement = ?,
				updated_at = ?
			WHERE id = ?
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to update match: %w", err)
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) DeleteMatch(ctx context.Context, id int64) (*Match, error) {
	var deleted *Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := scanMatch(tx.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get match: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete match: %w", err)
		}
		deleted = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Comments

func (s *SQLiteStore) ListComments(ctx context.Context, matchID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, match_id, user_id, username, comment, created_at FROM comments WHERE match_id = ? ORDER BY id",
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.MatchID, &c.UserID, &c.Username, &c.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) CreateComment(ctx context.Context, c *Comment) (*Comment, error) {
	created := *c
	created.CreatedAt = s.now().UTC()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO comments (match_id, user_id, username, comment, created_at) VALUES (?, ?, ?, ?, ?)",
		created.MatchID, created.UserID, created.Username, created.Comment, formatTime(created.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	created.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read comment id: %w", err)
	}
	return &created, nil
}

// Reactions

const reactionColumns = "id, match_id, user_id, username, type, created_at"

func scanReaction(row scanner) (*Reaction, error) {
	r := &Reaction{}
	var createdAt string
	if err := row.Scan(&r.ID, &r.MatchID, &r.UserID, &r.Username, &r.Type, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = t
	return r, nil
}

func (s *SQLiteStore) ListReactions(ctx context.Context, matchID int64) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reactionColumns+" FROM reactions WHERE match_id = ? ORDER BY id", matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	defer rows.Close()

	reactions := []Reaction{}
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		reactions = append(reactions, *r)
	}
	return reactions, rows.Err()
}

func (s *SQLiteStore) UpsertReaction(ctx context.Context, r *Reaction) (*Reaction, bool, error) {
	var result *Reaction
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		res, err := tx.ExecContext(ctx,
			"UPDATE reactions SET type = ?, username = ?, created_at = ? WHERE match_id = ? AND user_id = ?",
			r.Type, r.Username, now, r.MatchID, r.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update reaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO reactions (match_id, user_id, username, type, created_at) VALUES (?, ?, ?, ?, ?)",
				r.MatchID, r.UserID, r.Username, r.Type, now,
			); err != nil {
				return fmt.Errorf("failed to create reaction: %w", err)
			}
			created = true
		}

		result, err = scanReaction(tx.QueryRowContext(ctx,
			"SELECT "+reactionColumns+" FROM reactions WHERE match_id = ? AND user_id = ?", r.MatchID, r.UserID))
		if err != nil {
			return fmt.Errorf("failed to read reaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Predictions

const predictionColumns = "id, match_id, user_id, username, predicted_score_real, predicted_score_barca, points_earned, created_at"

func scanPrediction(row scanner) (*Prediction, error) {
	p := &Prediction{}
	var points sql.NullInt64
	var createdAt string
	if err := row.Scan(&p.ID, &p.MatchID, &p.UserID, &p.Username,
		&p.PredictedScoreReal, &p.PredictedScoreBarca, &points, &createdAt); err != nil {
		return nil, err
	}
	p.PointsEarned = intPtr(points)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return p, nil
}

func (s *SQLiteStore) queryPredictions(ctx context.Context, q queryer, matchID int64) ([]Prediction, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE match_id = ? ORDER BY id", matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	predictions := []Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, matchID int64) ([]Prediction, error) {
	return s.queryPredictions(ctx, s.db, matchID)
}

func (s *SQLiteStore) CreatePrediction(ctx context.Context, p *Prediction) (*Prediction, error) {
	created := *p
	created.CreatedAt = s.now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (match_id, user_id, username, predicted_score_real, predicted_score_barca, points_earned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, created.MatchID, created.UserID, created.Username, created.PredictedScoreReal, created.PredictedScoreBarca,
		nullInt(created.PointsEarned), formatTime(created.CreatedAt))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: prediction for match %d by user %d", ErrDuplicate, p.MatchID, p.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	created.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction id: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) ScorePredictions(ctx context.Context, matchID int64, score func(p Prediction) *int) (int, error) {
	scored := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		predictions, err := s.queryPredictions(ctx, tx, matchID)
		if err != nil {
			return err
		}
		for _, p := range predictions {
			if _, err := tx.ExecContext(ctx,
				"UPDATE predictions SET points_earned = ? WHERE id = ?", nullInt(score(p)), p.ID,
			); err != nil {
				return fmt.Errorf("failed to score prediction: %w", err)
			}
			scored++
		}
		return nil
	})
	return scored, err
}

// Settings

// settingsDB is satisfied by both *sql.DB and *sql.Tx.
type settingsDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getSettings(ctx context.Context, db settingsDB) (*Settings, error) {
	st := &Settings{}
	err := db.QueryRowContext(ctx, `
		SELECT site_name, database_label, theme, real_primary, real_secondary, barca_primary, barca_secondary
		FROM settings WHERE id = 1
	`).Scan(&st.SiteName, &st.Database, &st.Theme,
		&st.Colors.RealMadrid.Primary, &st.Colors.RealMadrid.Secondary,
		&st.Colors.Barcelona.Primary, &st.Colors.Barcelona.Secondary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return st, nil
}

func saveSettings(ctx context.Context, db settingsDB, st Settings) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (id, site_name, database_label, theme, real_primary, real_secondary, barca_primary, barca_secondary)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site_name = excluded.site_name,
			database_label = excluded.database_label,
			theme = excluded.theme,
			real_primary = excluded.real_primary,
			real_secondary = excluded.real_secondary,
			barca_primary = excluded.barca_primary,
			barca_secondary = excluded.barca_secondary
	`, st.SiteName, st.Database, st.Theme,
		st.Colors.RealMadrid.Primary, st.Colors.RealMadrid.Secondary,
		st.Colors.Barcelona.Primary, st.Colors.Barcelona.Secondary)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	return getSettings(ctx, s.db)
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st Settings) error {
	return saveSettings(ctx, s.db, st)
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, defaults Settings, mutate func(st *Settings) error) (*Settings, error) {
	var updated *Settings
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := getSettings(ctx, tx)
		if err != nil {
			return err
		}
		if st == nil {
			cp := defaults
			st = &cp
		}
		if err := mutate(st); err != nil {
			return err
		}
		if err := saveSettings(ctx, tx, *st); err != nil {
			return err
		}
		updated = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Password resets

func (s *SQLiteStore) CreatePasswordReset(ctx context.Context, r PasswordReset) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		r.TokenHash, r.UserID, r.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (*PasswordReset, error) {
	var found *PasswordReset
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE expires_at <= ?", now.Unix()); err != nil {
			return fmt.Errorf("failed to prune password resets: %w", err)
		}

		r := &PasswordReset{}
		var expiresAt int64
		err := tx.QueryRowContext(ctx,
			"SELECT token_hash, user_id, expires_at FROM password_resets WHERE token_hash = ?", tokenHash,
		).Scan(&r.TokenHash, &r.UserID, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get password reset: %w", err)
		}
		r.ExpiresAt = time.Unix(expiresAt, 0).UTC()

		if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE token_hash = ?", tokenHash); err != nil {
			return fmt.Errorf("failed to consume password reset: %w", err)
		}
		found = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
