package auth

import (
	"context"
	"errors"
	"fmt"

	"elclasico/apperr"
	"elclasico/store"
)

var (
	ErrInvalidRole         = apperr.New(apperr.Validation, "role must be admin or PLAYER")
	ErrOwnRole             = apperr.New(apperr.Forbidden, "you cannot change your own role")
	ErrOwnAccount          = apperr.New(apperr.Forbidden, "you cannot delete your own account")
	ErrSuperadminProtected = apperr.New(apperr.Forbidden, "the superadmin account cannot be changed or deleted")
)

type UserInput struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     store.Role `json:"role"`
}

// UserPatch is a superadmin edit of another account; nil fields are kept.
type UserPatch struct {
	Username *string     `json:"username"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *store.Role `json:"role"`
}

// assignable roles are the ones a superadmin may hand out.
func assignable(r store.Role) bool {
	return r.Valid() && !r.IsSuperadmin()
}

func (s *Service) ListUsers(ctx context.Context) ([]PublicUser, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]PublicUser, len(users))
	for i := range users {
		out[i] = Public(&users[i])
	}
	return out, nil
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (*store.User, error) {
	if in.Role == "" {
		in.Role = store.RolePlayer
	}
	if !assignable(in.Role) {
		return nil, ErrInvalidRole
	}
	u, err := s.createUser(ctx, RegisterInput{Username: in.Username, Email: in.Email, Password: in.Password}, in.Role)
	if err != nil {
		return nil, err
	}
	s.log.Infof("user %q created with role %s", u.Username, u.Role)
	return u, nil
}

// UpdateUser applies patch to the account id on behalf of actor. Nobody may
// change their own role and the superadmin's role is fixed.
func (s *Service) UpdateUser(ctx context.Context, actor *store.User, id int64, patch UserPatch) (*store.User, error) {
	if patch.Role != nil && !assignable(*patch.Role) {
		if *patch.Role == store.RoleSuperadmin {
			return nil, ErrSuperadminProtected
		}
		return nil, ErrInvalidRole
	}

	var newHash string
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := hashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		newHash = hash
	}

	u, err := s.store.UpdateUser(ctx, id, func(u *store.User) error {
		if patch.Role != nil && *patch.Role != u.Role {
			if u.ID == actor.ID {
				return ErrOwnRole
			}
			if u.Role == store.RoleSuperadmin {
				return ErrSuperadminProtected
			}
			u.Role = *patch.Role
		}
		if patch.Username != nil {
			username := SanitizeUsername(*patch.Username)
			if err := validateUsername(username); err != nil {
				return err
			}
			u.Username = username
		}
		if patch.Email != nil {
			email := normalizeEmail(*patch.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			u.Email = email
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, store.ErrDuplicate):
		return nil, ErrUserExists
	case err != nil:
		return nil, err
	}
	s.log.Infof("user %d updated by %q", id, actor.Username)
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, actor *store.User, id int64) (*store.User, error) {
	if id == actor.ID {
		return nil, ErrOwnAccount
	}
	target, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if target.Role == store.RoleSuperadmin {
		return nil, ErrSuperadminProtected
	}

	deleted, err := s.store.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	s.log.Infof("user %q deleted by %q", deleted.Username, actor.Username)
	return deleted, nil
}
