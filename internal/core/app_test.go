package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xabufr/memocadre/internal/types"
)

func writeConfig(t *testing.T, path, displayDuration string) {
	t.Helper()
	body := "instance_id: test-frame\ngallery:\n  url: mock\nslideshow:\n  display_duration: " + displayDuration + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestReloadSettingsSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "45s")

	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if got := a.settings.Load().DisplayDuration.Std(); got != 45*time.Second {
		t.Fatalf("initial snapshot not from file: %v", got)
	}

	writeConfig(t, path, "60s")
	if err := a.reloadSettings(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := a.settings.Load().DisplayDuration.Std(); got != 60*time.Second {
		t.Errorf("snapshot not swapped, display_duration %v", got)
	}

	// The render loop must be told to rebuild derived resources.
	select {
	case cmd := <-a.commands:
		if cmd.Kind != types.CommandReload {
			t.Errorf("expected reload command, got %s", cmd.Kind)
		}
	default:
		t.Errorf("no command enqueued after reload")
	}
}

func TestReloadSettingsParseFailureKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "45s")

	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	if err := os.WriteFile(path, []byte("slideshow: [not a mapping"), 0o644); err != nil {
		t.Fatalf("corrupt config: %v", err)
	}
	if err := a.reloadSettings(); err == nil {
		t.Fatalf("expected error for unparseable config")
	}

	if got := a.settings.Load().DisplayDuration.Std(); got != 45*time.Second {
		t.Errorf("prior snapshot lost after failed reload, display_duration %v", got)
	}
	select {
	case cmd := <-a.commands:
		t.Errorf("failed reload must not enqueue commands, got %s", cmd.Kind)
	default:
	}
}

func TestReloadSettingsAppliesOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "45s")

	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	override := "display_duration: 20s\ntransition_duration: 500ms\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	if err := a.reloadSettings(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := a.settings.Load().DisplayDuration.Std(); got != 20*time.Second {
		t.Errorf("override not applied on reload, display_duration %v", got)
	}
}
