package theme

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-taskdesk/internal/repository"
)

func newTestService(t *testing.T, dark bool) (*Service, *repository.PreferenceStorage) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewPreferenceStorage(filepath.Join(t.TempDir(), "preferences.json"), logger)
	require.NoError(t, err)
	return NewService(repo, func() bool { return dark }, logger), repo
}

func TestService_DefaultsToSystem(t *testing.T) {
	svc, _ := newTestService(t, true)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, System, got)

	resolved, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Dark, resolved)
}

func TestService_Cycle(t *testing.T) {
	svc, repo := newTestService(t, false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, Light))

	var seen []Theme
	for i := 0; i < 3; i++ {
		next, err := svc.Cycle(ctx)
		require.NoError(t, err)
		seen = append(seen, next)
	}
	assert.Equal(t, []Theme{Dark, System, Light}, seen)

	raw, ok, err := repo.Get(ctx, PreferenceKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", raw)
}

func TestService_InvalidValues(t *testing.T) {
	svc, repo := newTestService(t, false)
	ctx := context.Background()

	assert.Error(t, svc.Set(ctx, Theme("sepia")))

	require.NoError(t, repo.Set(ctx, PreferenceKey, "sepia"))
	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, System, got)

	resolved, err := svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Light, resolved)
}

func TestParseAndTerminalDark(t *testing.T) {
	got, err := Parse(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, Dark, got)

	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, TerminalDark())
	t.Setenv("COLORFGBG", "0;15")
	assert.False(t, TerminalDark())
	t.Setenv("COLORFGBG", "")
	assert.False(t, TerminalDark())
}
