package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swarmclone-desktop/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd(&AppProvider{})

	want := []string{"config", "settings", "watch", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_EndToEnd(t *testing.T) {
	for _, name := range []string{config.EnvHome, config.EnvConfig, config.EnvDebounceMS, config.EnvLogLevel} {
		t.Setenv(name, "")
	}
	home := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		var out, errOut bytes.Buffer
		provider := &AppProvider{Out: &out, Err: &errOut}
		root := newRootCmd(provider)
		root.SetArgs(append([]string{"--home", home}, args...))
		err := root.Execute()
		if closeErr := provider.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			t.Fatalf("swarmctl %s: %v (stderr: %s)", strings.Join(args, " "), err, errOut.String())
		}
		return out.String()
	}

	run("config", "set", "theme", "dark")
	run("config", "set", "custom.volume", "0.5")

	if got := strings.TrimSpace(run("config", "get", "theme")); got != "dark" {
		t.Errorf("theme = %q, want dark", got)
	}

	var doc map[string]any
	raw, err := os.ReadFile(filepath.Join(home, config.ConfigFileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["custom.volume"] != 0.5 {
		t.Errorf("custom.volume on disk = %v, want 0.5", doc["custom.volume"])
	}
	if doc["language"] != "zh_CN" {
		t.Errorf("defaults were not persisted: %v", doc)
	}
	if !strings.HasPrefix(string(raw), "{\n  \"") {
		t.Errorf("document is not two-space indented:\n%s", raw)
	}
}

func TestRootCmd_VerboseLogsToErr(t *testing.T) {
	for _, name := range []string{config.EnvHome, config.EnvConfig, config.EnvDebounceMS, config.EnvLogLevel} {
		t.Setenv(name, "")
	}

	var out, errOut bytes.Buffer
	provider := &AppProvider{Out: &out, Err: &errOut}
	root := newRootCmd(provider)
	root.SetArgs([]string{"--home", t.TempDir(), "--verbose", "config", "path"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if err := provider.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(errOut.String(), "runtime opened") {
		t.Errorf("debug log missing from stderr: %q", errOut.String())
	}
	if strings.Contains(out.String(), "runtime opened") {
		t.Error("logs leaked to stdout")
	}
}

func TestRootCmd_ReadCommandsLeaveDocumentAlone(t *testing.T) {
	for _, name := range []string{config.EnvHome, config.EnvConfig, config.EnvDebounceMS, config.EnvLogLevel} {
		t.Setenv(name, "")
	}
	home := t.TempDir()
	path := filepath.Join(home, config.ConfigFileName)
	torn := "{\"theme\": \"dark\", \"custom\": [1,2,\n"
	if err := os.WriteFile(path, []byte(torn), 0644); err != nil {
		t.Fatal(err)
	}

	commands := [][]string{
		{"config", "validate"},
		{"config", "get", "theme"},
		{"config", "list"},
		{"config", "path"},
		{"watch", "--for", "50ms"},
	}
	for _, args := range commands {
		var out, errOut bytes.Buffer
		provider := &AppProvider{Out: &out, Err: &errOut}
		root := newRootCmd(provider)
		root.SetArgs(append([]string{"--home", home}, args...))
		_ = root.Execute() // validate fails on a torn document
		if err := provider.Close(); err != nil {
			t.Errorf("swarmctl %s: close: %v", strings.Join(args, " "), err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(raw) != torn {
			t.Fatalf("swarmctl %s rewrote the document:\n%s", strings.Join(args, " "), raw)
		}
	}
}
