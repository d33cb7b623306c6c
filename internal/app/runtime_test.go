package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"swarmclone-desktop/internal/config"
	"swarmclone-desktop/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{config.EnvHome, config.EnvConfig, config.EnvDebounceMS, config.EnvLogLevel} {
		t.Setenv(name, "")
	}
}

func open(t *testing.T, home string) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), Options{Home: home, Logger: zap.NewNop()})
	require.NoError(t, err)
	return rt
}

func readDocument(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestOpenWritesDefaultsOnClose(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	rt := open(t, home)
	assert.Equal(t, filepath.Join(home, config.ConfigFileName), rt.Paths.ConfigFile)
	require.NoError(t, rt.Close())

	doc := readDocument(t, rt.Paths.ConfigFile)
	if diff := cmp.Diff(config.DefaultValues(), doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestStateIsSeeded(t *testing.T) {
	clearEnv(t)
	rt := open(t, t.TempDir())
	defer rt.Close()

	theme, err := state.As[string](rt.State, "theme")
	require.NoError(t, err)
	assert.Equal(t, config.ThemeDefault, theme)

	view, err := state.As[string](rt.State, "current_view")
	require.NoError(t, err)
	assert.Equal(t, config.ViewHome, view)

	assert.True(t, rt.State.Persisted("theme"))
	assert.False(t, rt.State.Persisted("current_view"))
}

func TestStateChangesSurviveRestart(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	rt := open(t, home)
	rt.State.Set("theme", config.ThemeDark)
	rt.State.Set("current_view", config.ViewSettings)
	require.NoError(t, rt.Close())

	doc := readDocument(t, rt.Paths.ConfigFile)
	assert.Equal(t, config.ThemeDark, doc["theme"])
	assert.NotContains(t, doc, "current_view")

	rt = open(t, home)
	defer rt.Close()
	theme, err := rt.State.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, config.ThemeDark, theme)
	view, err := rt.State.Get("current_view")
	require.NoError(t, err)
	assert.Equal(t, config.ViewHome, view)
}

func TestSettingsControlStore(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cfg := config.Default()
	cfg.Store.File = "custom.json"
	cfg.Store.DebounceMS = 10
	require.NoError(t, config.Write(filepath.Join(home, config.SettingsFileName), cfg))

	rt := open(t, home)
	defer rt.Close()

	assert.Equal(t, filepath.Join(home, "custom.json"), rt.Store.Path())
	assert.Equal(t, 10*time.Millisecond, rt.Store.Delay())
	assert.False(t, rt.Watching())
}

func TestEnvOverrideErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDebounceMS, "soon")

	_, err := Open(context.Background(), Options{Home: t.TempDir(), Logger: zap.NewNop()})
	assert.ErrorContains(t, err, config.EnvDebounceMS)
}

func TestReloadNotifiesSubscribers(t *testing.T) {
	clearEnv(t)
	rt := open(t, t.TempDir())
	defer rt.Close()
	require.NoError(t, rt.Store.Flush())

	var mu sync.Mutex
	changes := map[string]any{}
	rt.State.SubscribeAll(func(key string, value any) {
		mu.Lock()
		defer mu.Unlock()
		changes[key] = value
	})

	doc := config.DefaultValues()
	doc["theme"] = config.ThemeLight
	doc["extra"] = "x"
	delete(doc, "live2d.enabled")
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(rt.Paths.ConfigFile, raw, 0644))

	rt.Reload()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]any{
		"theme":          config.ThemeLight,
		"extra":          "x",
		"live2d.enabled": nil,
	}, changes)
	assert.True(t, rt.State.Persisted("extra"))
}

func TestWatchPicksUpExternalEdit(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	rt, err := Open(context.Background(), Options{Home: home, Logger: zap.NewNop(), Watch: true})
	require.NoError(t, err)
	defer rt.Close()
	require.True(t, rt.Watching())
	require.NoError(t, rt.Store.Flush())

	doc := rt.Store.All()
	doc["theme"] = config.ThemeDark
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	tmp := rt.Paths.ConfigFile + ".edit"
	require.NoError(t, os.WriteFile(tmp, raw, 0644))
	require.NoError(t, os.Rename(tmp, rt.Paths.ConfigFile))

	require.Eventually(t, func() bool {
		v, _ := rt.State.Lookup("theme")
		return v == config.ThemeDark
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	clearEnv(t)
	var mu sync.Mutex
	var flushes []config.FlushResult
	rt, err := Open(context.Background(), Options{
		Home:   t.TempDir(),
		Logger: zap.NewNop(),
		FlushHook: func(r config.FlushResult) {
			mu.Lock()
			defer mu.Unlock()
			flushes = append(flushes, r)
		},
	})
	require.NoError(t, err)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushes, 1)
	assert.False(t, flushes[0].Background)
	assert.NoError(t, flushes[0].Err)
}

func TestReadOnlyLeavesCorruptDocument(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	path := filepath.Join(home, config.ConfigFileName)
	torn := []byte("{\"theme\": \"dark\", \"custom\": [1,2,\n")
	require.NoError(t, os.WriteFile(path, torn, 0644))

	rt, err := Open(context.Background(), Options{Home: home, Logger: zap.NewNop(), ReadOnly: true})
	require.NoError(t, err)
	assert.Error(t, rt.Store.LastLoadError())
	assert.Empty(t, rt.Store.All())
	assert.False(t, rt.Store.Dirty())

	theme, err := rt.State.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, config.ThemeDefault, theme, "defaults still reach the state")
	assert.True(t, rt.State.Persisted("theme"))

	require.NoError(t, rt.Close())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(torn), string(raw))
}

func TestReadOnlyWritesRealChanges(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	rt, err := Open(context.Background(), Options{Home: home, Logger: zap.NewNop(), ReadOnly: true})
	require.NoError(t, err)
	assert.True(t, rt.State.Set("theme", config.ThemeDark))
	require.NoError(t, rt.Close())

	assert.Equal(t, map[string]any{"theme": config.ThemeDark}, readDocument(t, rt.Paths.ConfigFile))
}

func TestReadOnlyReloadFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	rt, err := Open(context.Background(), Options{Home: t.TempDir(), Logger: zap.NewNop(), ReadOnly: true})
	require.NoError(t, err)
	defer rt.Close()

	var mu sync.Mutex
	changes := map[string]any{}
	rt.State.SubscribeAll(func(key string, value any) {
		mu.Lock()
		defer mu.Unlock()
		changes[key] = value
	})

	require.NoError(t, os.WriteFile(rt.Paths.ConfigFile, []byte(`{"theme": "light", "extra": 1}`), 0644))
	rt.Reload()
	require.NoError(t, os.WriteFile(rt.Paths.ConfigFile, []byte(`{}`), 0644))
	rt.Reload()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]any{
		"theme": config.ThemeDefault,
		"extra": nil,
	}, changes)
	assert.False(t, rt.Store.Dirty(), "a reload must not schedule a write")
}

func TestCloseSkipsCleanStore(t *testing.T) {
	clearEnv(t)
	var mu sync.Mutex
	flushes := 0
	rt, err := Open(context.Background(), Options{
		Home:   t.TempDir(),
		Logger: zap.NewNop(),
		FlushHook: func(config.FlushResult) {
			mu.Lock()
			defer mu.Unlock()
			flushes++
		},
	})
	require.NoError(t, err)
	require.NoError(t, rt.Store.Flush())
	require.NoError(t, rt.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, flushes, "Close must not rewrite a document already on disk")
}
