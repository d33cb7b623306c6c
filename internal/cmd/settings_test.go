package cmd

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"swarmclone-desktop/internal/config"
)

func TestSettingsInit_WritesDefaults(t *testing.T) {
	a, out := setupConfigTestApp(t)

	cmd := newSettingsInitCmd(NewTestProvider(a))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings init failed: %v", err)
	}

	path := a.Runtime.Paths.SettingsFile
	if !strings.Contains(out.String(), path) {
		t.Errorf("output %q should name %s", out.String(), path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("loading written settings: %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("written settings = %+v, want defaults", cfg)
	}
}

func TestSettingsInit_KeepsExistingFile(t *testing.T) {
	a, out := setupConfigTestApp(t)
	path := a.Runtime.Paths.SettingsFile
	if err := os.WriteFile(path, []byte("watch: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newSettingsInitCmd(NewTestProvider(a))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings init failed: %v", err)
	}

	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("output = %q", out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "watch: true\n" {
		t.Errorf("settings file was overwritten: %q", data)
	}
}

func TestSettingsInit_Force(t *testing.T) {
	a, _ := setupConfigTestApp(t)
	path := a.Runtime.Paths.SettingsFile
	if err := os.WriteFile(path, []byte("watch: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newSettingsInitCmd(NewTestProvider(a))
	cmd.SetArgs([]string{"--force"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings init --force failed: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch {
		t.Error("watch should be reset to the default by --force")
	}
}

func TestSettingsShow_YAML(t *testing.T) {
	a, out := setupConfigTestApp(t)

	cmd := newSettingsShowCmd(NewTestProvider(a))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings show failed: %v", err)
	}

	for _, want := range []string{"debounce_ms: 300", "level: info", "watch: false"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSettingsShow_JSON(t *testing.T) {
	a, out := setupConfigTestApp(t)
	a.JSON = true

	cmd := newSettingsShowCmd(NewTestProvider(a))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings show failed: %v", err)
	}

	var result struct {
		Store struct {
			File       string `json:"file"`
			DebounceMS int    `json:"debounce_ms"`
		} `json:"store"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Store.File != config.ConfigFileName || result.Store.DebounceMS != 300 {
		t.Errorf("store = %+v", result.Store)
	}
}
