package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrCorrupt   = errors.New("data file is corrupt")
)

// Store is the typed repository behind every endpoint. Getters return
// (nil, nil) when the record does not exist; updates and deletes return
// ErrNotFound. Every mutating method has persisted its change when it returns.
type Store interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
	UpdateUser(ctx context.Context, id int64, mutate func(u *User) error) (*User, error)
	DeleteUser(ctx context.Context, id int64) (*User, error)

	ListMatches(ctx context.Context) ([]Match, error)
	GetMatch(ctx context.Context, id int64) (*Match, error)
	CreateMatch(ctx context.Context, m *Match) (*Match, error)
	UpdateMatch(ctx context.Context, id int64, mutate func(m *Match) error) (*Match, error)
	DeleteMatch(ctx context.Context, id int64) (*Match, error)

	ListComments(ctx context.Context, matchID int64) ([]Comment, error)
	CreateComment(ctx context.Context, c *Comment) (*Comment, error)

	ListReactions(ctx context.Context, matchID int64) ([]Reaction, error)
	UpsertReaction(ctx context.Context, r *Reaction) (reaction *Reaction, created bool, err error)

	ListPredictions(ctx context.Context, matchID int64) ([]Prediction, error)
	CreatePrediction(ctx context.Context, p *Prediction) (*Prediction, error)
	ScorePredictions(ctx context.Context, matchID int64, score func(p Prediction) *int) (int, error)

	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
	// UpdateSettings starts from defaults when nothing was saved yet.
	UpdateSettings(ctx context.Context, defaults Settings, mutate func(s *Settings) error) (*Settings, error)

	CreatePasswordReset(ctx context.Context, r PasswordReset) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (*PasswordReset, error)

	Close() error
}

type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RolePlayer     Role = "PLAYER"
)

func (r Role) Valid() bool {
	return r == RoleSuperadmin || r == RoleAdmin || r == RolePlayer
}

// IsAdmin reports whether the role has admin rights: match management and
// cache control.
func (r Role) IsAdmin() bool {
	return r == RoleSuperadmin || r == RoleAdmin
}

func (r Role) IsSuperadmin() bool {
	return r == RoleSuperadmin
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
)

// Match holds one fixture. Pointer fields are absent until set.
type Match struct {
	ID            int64     `json:"id"`
	MatchDatetime time.Time `json:"match_datetime"`
	Location      string    `json:"location"`
	Status        string    `json:"status"`

	ScoreReal     *int `json:"score_real,omitempty"`
	ScoreBarca    *int `json:"score_barca,omitempty"`
	GoalsReal     *int `json:"goals_real,omitempty"`
	GoalsBarca    *int `json:"goals_barca,omitempty"`
	ConcededReal  *int `json:"conceded_real,omitempty"`
	ConcededBarca *int `json:"conceded_barca,omitempty"`
	PointsReal    *int `json:"points_real,omitempty"`
	PointsBarca   *int `json:"points_barca,omitempty"`

	LineupReal   *string `json:"lineup_real,omitempty"`
	LineupBarca  *string `json:"lineup_barca,omitempty"`
	CoachReal    *string `json:"coach_real,omitempty"`
	CoachBarca   *string `json:"coach_barca,omitempty"`
	Announcement *string `json:"announcement,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Comment struct {
	ID        int64     `json:"id"`
	MatchID   int64     `json:"match_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type Reaction struct {
	ID        int64     `json:"id"`
	MatchID   int64     `json:"match_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type Prediction struct {
	ID                  int64     `json:"id"`
	MatchID             int64     `json:"match_id"`
	UserID              int64     `json:"user_id"`
	Username            string    `json:"username"`
	PredictedScoreReal  int       `json:"predicted_score_real"`
	PredictedScoreBarca int       `json:"predicted_score_barca"`
	PointsEarned        *int      `json:"points_earned"`
	CreatedAt           time.Time `json:"created_at"`
}

type PasswordReset struct {
	TokenHash string    `json:"token_hash"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TeamColors struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type Colors struct {
	RealMadrid TeamColors `json:"realMadrid"`
	Barcelona  TeamColors `json:"barcelona"`
}

type Settings struct {
	SiteName string `json:"siteName"`
	Database string `json:"database"`
	Theme    string `json:"theme"`
	Colors   Colors `json:"colors"`
}
