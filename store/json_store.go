package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// document is the whole database as laid out on disk.
type document struct {
	Users          []User          `json:"users"`
	Matches        []Match         `json:"matches"`
	NextUserID     int64           `json:"nextUserId"`
	NextMatchID    int64           `json:"nextMatchId"`
	Settings       *Settings       `json:"settings,omitempty"`
	Comments       []Comment       `json:"comments"`
	Reactions      []Reaction      `json:"reactions"`
	Predictions    []Prediction    `json:"predictions"`
	PasswordResets []PasswordReset `json:"passwordResets"`
}

func emptyDocument() *document {
	doc := &document{}
	doc.normalize()
	return doc
}

// normalize fills missing collections and repairs counters that lag behind
// the ids already present.
func (d *document) normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Matches == nil {
		d.Matches = []Match{}
	}
	if d.Comments == nil {
		d.Comments = []Comment{}
	}
	if d.Reactions == nil {
		d.Reactions = []Reaction{}
	}
	if d.Predictions == nil {
		d.Predictions = []Prediction{}
	}
	if d.PasswordResets == nil {
		d.PasswordResets = []PasswordReset{}
	}

	var maxUser, maxMatch int64
	for _, u := range d.Users {
		maxUser = max(maxUser, u.ID)
	}
	for _, m := range d.Matches {
		maxMatch = max(maxMatch, m.ID)
	}
	d.NextUserID = max(d.NextUserID, maxUser+1, 1)
	d.NextMatchID = max(d.NextMatchID, maxMatch+1, 1)
}

// JSONStore keeps the whole database in one JSON file. Every call reads the
// file; every mutation rewrites it. The mutex makes each call one critical
// section so concurrent writers cannot lose each other's updates.
type JSONStore struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &JSONStore{path: path, now: time.Now}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	doc.normalize()
	return doc, nil
}

func (s *JSONStore) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data file: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

func (s *JSONStore) read(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// write runs fn on a freshly loaded document and saves it unless fn fails.
func (s *JSONStore) write(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *JSONStore) timestamp() time.Time {
	return s.now().UTC()
}

// Users

func (s *JSONStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.read(ctx, func(doc *document) error {
		users = doc.Users
		return nil
	})
	return users, err
}

func (s *JSONStore) findUser(ctx context.Context, match func(u *User) bool) (*User, error) {
	var found *User
	err := s.read(ctx, func(doc *document) error {
		for i := range doc.Users {
			if match(&doc.Users[i]) {
				u := doc.Users[i]
				found = &u
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s *JSONStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.findUser(ctx, func(u *User) bool { return u.ID == id })
}

func (s *JSONStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.findUser(ctx, func(u *User) bool { return u.Username == username })
}

func (s *JSONStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, nil
	}
	return s.findUser(ctx, func(u *User) bool { return u.Email == email })
}

func userConflict(doc *document, u *User) error {
	for i := range doc.Users {
		other := &doc.Users[i]
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return fmt.Errorf("%w: username %q", ErrDuplicate, u.Username)
		}
		if u.Email != "" && other.Email == u.Email {
			return fmt.Errorf("%w: email %q", ErrDuplicate, u.Email)
		}
	}
	return nil
}

func (s *JSONStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	created := *u
	err := s.write(ctx, func(doc *document) error {
		created.ID = 0
		if err := userConflict(doc, &created); err != nil {
			return err
		}
		created.ID = doc.NextUserID
		doc.NextUserID++
		if created.CreatedAt.IsZero() {
			created.CreatedAt = s.timestamp()
		}
		doc.Users = append(doc.Users, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *JSONStore) UpdateUser(ctx context.Context, id int64, mutate func(u *User) error) (*User, error) {
	var updated User
	err := s.write(ctx, func(doc *document) error {
		for i := range doc.Users {
			if doc.Users[i].ID != id {
				continue
			}
			u := doc.Users[i]
			if err := mutate(&u); err != nil {
				return err
			}
			u.ID = id
			if err := userConflict(doc, &u); err != nil {
				return err
			}
			doc.Users[i] = u
			updated = u
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *JSONStore) DeleteUser(ctx context.Context, id int64) (*User, error) {
	var deleted User
	err := s.write(ctx, func(doc *document) error {
		for i := range doc.Users {
			if doc.Users[i].ID == id {
				deleted = doc.Users[i]
				doc.Users = append(doc.Users[:i], doc.Users[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// Matches

func (s *JSONStore) ListMatches(ctx context.Context) ([]Match, error) {
	var matches []Match
	err := s.read(ctx, func(doc *document) error {
		matches = doc.Matches
		return nil
	})
	return matches, err
}

func (s *JSONStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	var found *Match
	err := s.read(ctx, func(doc *document) error {
		for i := range doc.Matches {
			if doc.Matches[i].ID == id {
				m := doc.Matches[i]
				found = &m
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s *JSONStore) CreateMatch(ctx context.Context, m *Match) (*Match, error) {
	created := *m
	err := s.write(ctx, func(doc *document) error {
		created.ID = doc.NextMatchID
		doc.NextMatchID++
		created.CreatedAt = s.timestamp()
		created.UpdatedAt = nil
		doc.Matches = append(doc.Matches, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *JSONStore) UpdateMatch(ctx context.Context, id int64, mutate func(m *Match) error) (*Match, error) {
	var updated Match
	err := s.write(ctx, func(doc *document) error {
		for i := range doc.Matches {
			if doc.Matches[i].ID != id {
				continue
			}
			m := doc.Matches[i]
			if err := mutate(&m); err != nil {
				return err
			}
			now := s.timestamp()
			m.ID = id
			m.CreatedAt = doc.Matches[i].CreatedAt
			m.UpdatedAt = &now
			doc.Matches[i] = m
			updated = m
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteMatch also drops the match's comments, reactions and predictions.
func (s *JSONStore) DeleteMatch(ctx context.Context, id int64) (*Match, error) {
	var deleted Match
	err := s.write(ctx, func(doc *document) error {
		idx := -1
		for i := range doc.Matches {
			if doc.Matches[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		deleted = doc.Matches[idx]
		doc.Matches = append(doc.Matches[:idx], doc.Matches[idx+1:]...)

		doc.Comments = filter(doc.Comments, func(c Comment) bool { return c.MatchID != id })
		doc.Reactions = filter(doc.Reactions, func(r Reaction) bool { return r.MatchID != id })
		doc.Predictions = filter(doc.Predictions, func(p Prediction) bool { return p.MatchID != id })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// Comments, reactions and predictions take max(id)+1 as their next id.

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func nextID[T any](items []T, id func(T) int64) int64 {
	var highest int64
	for _, item := range items {
		highest = max(highest, id(item))
	}
	return highest + 1
}

func (s *JSONStore) ListComments(ctx context.Context, matchID int64) ([]Comment, error) {
	var comments []Comment
	err := s.read(ctx, func(doc *document) error {
		comments = filter(doc.Comments, func(c Comment) bool { return c.MatchID == matchID })
		return nil
	})
	return comments, err
}

func (s *JSONStore) CreateComment(ctx context.Context, c *Comment) (*Comment, error) {
	created := *c
	err := s.write(ctx, func(doc *document) error {
		created.ID = nextID(doc.Comments, func(c Comment) int64 { return c.ID })
		created.CreatedAt = s.timestamp()
		doc.Comments = append(doc.Comments, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *JSONStore) ListReactions(ctx context.Context, matchID int64) ([]Reaction, error) {
	var reactions []Reaction
	err := s.read(ctx, func(doc *document) error {
		reactions = filter(doc.Reactions, func(r Reaction) bool { return r.MatchID == matchID })
		return nil
	})
	return reactions, err
}

func (s *JSONStore) UpsertReaction(ctx context.Context, r *Reaction) (*Reaction, bool, error) {
	var result Reaction
	created := false
	err := s.write(ctx, func(doc *document) error {
		now := s.timestamp()
		for i := range doc.Reactions {
			existing := &doc.Reactions[i]
			if existing.MatchID == r.MatchID && existing.UserID == r.UserID {
				existing.Type = r.Type
				existing.Username = r.Username
				existing.CreatedAt = now
				result = *existing
				return nil
			}
		}
		result = *r
		result.ID = nextID(doc.Reactions, func(r Reaction) int64 { return r.ID })
		result.CreatedAt = now
		doc.Reactions = append(doc.Reactions, result)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, created, nil
}

func (s *JSONStore) ListPredictions(ctx context.Context, matchID int64) ([]Prediction, error) {
	var predictions []Prediction
	err := s.read(ctx, func(doc *document) error {
		predictions = filter(doc.Predictions, func(p Prediction) bool { return p.MatchID == matchID })
		return nil
	})
	return predictions, err
}

func (s *JSONStore) CreatePrediction(ctx context.Context, p *Prediction) (*Prediction, error) {
	created := *p
	err := s.write(ctx, func(doc *document) error {
		for _, existing := range doc.Predictions {
			if existing.MatchID == p.MatchID && existing.UserID == p.UserID {
				return fmt.Errorf("%w: prediction for match %d by user %d", ErrDuplicate, p.MatchID, p.UserID)
			}
		}
		created.ID = nextID(doc.Predictions, func(p Prediction) int64 { return p.ID })
		created.CreatedAt = s.timestamp()
		doc.Predictions = append(doc.Predictions, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *JSONStore) ScorePredictions(ctx context.Context, matchID int64, score func(p Prediction) *int) (int, error) {
	scored := 0
	err := s.write(ctx, func(doc *document) error {
		for i := range doc.Predictions {
			if doc.Predictions[i].MatchID == matchID {
				doc.Predictions[i].PointsEarned = score(doc.Predictions[i])
				scored++
			}
		}
		return nil
	})
	return scored, err
}

// Settings

func (s *JSONStore) GetSettings(ctx context.Context) (*Settings, error) {
	var settings *Settings
	err := s.read(ctx, func(doc *document) error {
		if doc.Settings != nil {
			cp := *doc.Settings
			settings = &cp
		}
		return nil
	})
	return settings, err
}

func (s *JSONStore) SaveSettings(ctx context.Context, settings Settings) error {
	return s.write(ctx, func(doc *document) error {
		doc.Settings = &settings
		return nil
	})
}

func (s *JSONStore) UpdateSettings(ctx context.Context, defaults Settings, mutate func(st *Settings) error) (*Settings, error) {
	var updated Settings
	err := s.write(ctx, func(doc *document) error {
		updated = defaults
		if doc.Settings != nil {
			updated = *doc.Settings
		}
		if err := mutate(&updated); err != nil {
			return err
		}
		saved := updated
		doc.Settings = &saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Password resets

func (s *JSONStore) CreatePasswordReset(ctx context.Context, r PasswordReset) error {
	return s.write(ctx, func(doc *document) error {
		doc.PasswordResets = append(doc.PasswordResets, r)
		return nil
	})
}

// ConsumePasswordReset removes the reset with the given hash and returns it
// if it has not expired. Expired resets are pruned on the way.
func (s *JSONStore) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (*PasswordReset, error) {
	var found *PasswordReset
	err := s.write(ctx, func(doc *document) error {
		kept := doc.PasswordResets[:0]
		for _, r := range doc.PasswordResets {
			if !now.Before(r.ExpiresAt) {
				continue
			}
			if r.TokenHash == tokenHash && found == nil {
				cp := r
				found = &cp
				continue
			}
			kept = append(kept, r)
		}
		doc.PasswordResets = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *JSONStore) Close() error {
	return nil
}
