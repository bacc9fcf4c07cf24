// Package theme stores the user's light/dark preference.
package theme

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/veranemoloko/media-taskdesk/internal/repository"
)

// PreferenceKey is the storage key of the theme preference.
const PreferenceKey = "theme-preference"

type Theme string

const (
	Light  Theme = "light"
	Dark   Theme = "dark"
	System Theme = "system"
)

// Parse accepts light, dark or system, case-insensitively.
func Parse(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case Light, Dark, System:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

// Next returns the theme that follows t in the light, dark, system cycle.
func (t Theme) Next() Theme {
	switch t {
	case Light:
		return Dark
	case Dark:
		return System
	default:
		return Light
	}
}

// Service reads and writes the theme preference. One instance is created at
// startup and handed to whatever needs it.
type Service struct {
	repo       repository.PreferenceRepo
	systemDark func() bool
	logger     *slog.Logger
}

// NewService creates a Service. systemDark reports the OS color scheme; nil
// means light.
func NewService(repo repository.PreferenceRepo, systemDark func() bool, logger *slog.Logger) *Service {
	if systemDark == nil {
		systemDark = func() bool { return false }
	}
	return &Service{repo: repo, systemDark: systemDark, logger: logger}
}

// Get returns the stored preference, System when none or an invalid one is
// stored.
func (s *Service) Get(ctx context.Context) (Theme, error) {
	raw, ok, err := s.repo.Get(ctx, PreferenceKey)
	if err != nil {
		return "", fmt.Errorf("read theme preference: %w", err)
	}
	if !ok {
		return System, nil
	}
	t, err := Parse(raw)
	if err != nil {
		s.logger.Warn("ignoring stored theme preference", "value", raw)
		return System, nil
	}
	return t, nil
}

// Set stores t.
func (s *Service) Set(ctx context.Context, t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, PreferenceKey, string(t)); err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	s.logger.Info("theme preference changed", "theme", t)
	return nil
}

// Cycle advances the stored preference and returns the new one.
func (s *Service) Cycle(ctx context.Context) (Theme, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	next := current.Next()
	if err := s.Set(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// Resolve returns the theme to render: System is replaced with the OS scheme.
func (s *Service) Resolve(ctx context.Context) (Theme, error) {
	t, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	if t != System {
		return t, nil
	}
	if s.systemDark() {
		return Dark, nil
	}
	return Light, nil
}

// TerminalDark guesses the terminal background from COLORFGBG ("fg;bg"),
// where background colors 0-6 and 8 are dark.
func TerminalDark() bool {
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false
	}
	return (bg >= 0 && bg <= 6) || bg == 8
}
