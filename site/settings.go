// Package site owns the singleton site settings and the cache directory.
package site

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"elclasico/apperr"
	"elclasico/store"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrInvalidColor    = apperr.New(apperr.Validation, "colors must be hex values like #FFD700")
	ErrEmptySiteName   = apperr.New(apperr.Validation, "siteName cannot be empty")
	ErrSiteNameTooLong = apperr.New(apperr.Validation, "siteName cannot be longer than 80 characters")
)

var (
	hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	policy   = bluemonday.StrictPolicy()
)

// DefaultSettings are served until a superadmin saves their own.
func DefaultSettings(databaseLabel string) store.Settings {
	return store.Settings{
		SiteName: "Amateur El Clásico",
		Database: databaseLabel,
		Theme:    "dark",
		Colors: store.Colors{
			RealMadrid: store.TeamColors{Primary: "#FFD700", Secondary: "#FFAA00"},
			Barcelona:  store.TeamColors{Primary: "#0052A5", Secondary: "#DC0028"},
		},
	}
}

type TeamColorsPatch struct {
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
}

type ColorsPatch struct {
	RealMadrid *TeamColorsPatch `json:"realMadrid"`
	Barcelona  *TeamColorsPatch `json:"barcelona"`
}

// SettingsPatch merges field by field into the current settings.
type SettingsPatch struct {
	SiteName *string      `json:"siteName"`
	Database *string      `json:"database"`
	Theme    *string      `json:"theme"`
	Colors   *ColorsPatch `json:"colors"`
}

type Service struct {
	store    store.Store
	defaults store.Settings
	cacheDir string
	log      *log.Helper
}

func NewService(s store.Store, databaseLabel, cacheDir string, logger log.Logger) *Service {
	return &Service{
		store:    s,
		defaults: DefaultSettings(databaseLabel),
		cacheDir: cacheDir,
		log:      log.NewHelper(log.With(logger, "module", "site")),
	}
}

func (s *Service) Get(ctx context.Context) (store.Settings, error) {
	current, err := s.store.GetSettings(ctx)
	if err != nil {
		return store.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	if current == nil {
		return s.defaults, nil
	}
	return *current, nil
}

// Update merges patch into the stored settings inside one store write, so
// concurrent patches of different fields all land.
func (s *Service) Update(ctx context.Context, patch SettingsPatch) (store.Settings, error) {
	updated, err := s.store.UpdateSettings(ctx, s.defaults, patch.apply)
	if err != nil {
		return store.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	s.log.Info("settings updated")
	return *updated, nil
}

func (patch SettingsPatch) apply(current *store.Settings) error {
	if patch.SiteName != nil {
		name := clean(*patch.SiteName)
		if name == "" {
			return ErrEmptySiteName
		}
		if len([]rune(name)) > 80 {
			return ErrSiteNameTooLong
		}
		current.SiteName = name
	}
	if patch.Database != nil {
		current.Database = clean(*patch.Database)
	}
	if patch.Theme != nil {
		current.Theme = clean(*patch.Theme)
	}
	if patch.Colors != nil {
		if err := mergeColors(&current.Colors.RealMadrid, patch.Colors.RealMadrid); err != nil {
			return err
		}
		if err := mergeColors(&current.Colors.Barcelona, patch.Colors.Barcelona); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Reset(ctx context.Context) (store.Settings, error) {
	if err := s.store.SaveSettings(ctx, s.defaults); err != nil {
		return store.Settings{}, fmt.Errorf("failed to reset settings: %w", err)
	}
	s.log.Info("settings reset to defaults")
	return s.defaults, nil
}

func mergeColors(dst *store.TeamColors, patch *TeamColorsPatch) error {
	if patch == nil {
		return nil
	}
	if patch.Primary != nil {
		c := strings.TrimSpace(*patch.Primary)
		if !hexColor.MatchString(c) {
			return ErrInvalidColor
		}
		dst.Primary = c
	}
	if patch.Secondary != nil {
		c := strings.TrimSpace(*patch.Secondary)
		if !hexColor.MatchString(c) {
			return ErrInvalidColor
		}
		dst.Secondary = c
	}
	return nil
}

func clean(s string) string {
	return strings.TrimSpace(policy.Sanitize(s))
}
