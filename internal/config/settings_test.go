package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := ValidateSettings(&s); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if s.DisplayDuration.Std() != 30*time.Second {
		t.Errorf("expected 30s display duration, got %v", s.DisplayDuration.Std())
	}
	if s.TransitionDuration.Std() != 500*time.Millisecond {
		t.Errorf("expected 500ms transition, got %v", s.TransitionDuration.Std())
	}
	if s.Background != "blur" {
		t.Errorf("expected blur background, got %q", s.Background)
	}
}

func TestPatchKnownPaths(t *testing.T) {
	base := DefaultSettings()

	patched, err := base.Patch("display_duration", "45s")
	if err != nil {
		t.Fatalf("patch display_duration: %v", err)
	}
	if patched.DisplayDuration.Std() != 45*time.Second {
		t.Errorf("expected 45s, got %v", patched.DisplayDuration.Std())
	}
	if base.DisplayDuration.Std() != 30*time.Second {
		t.Errorf("patch must not modify the receiver")
	}

	patched, err = base.Patch("blur.passes", float64(5))
	if err != nil {
		t.Fatalf("patch blur.passes: %v", err)
	}
	if patched.Blur.Passes != 5 {
		t.Errorf("expected 5 passes, got %d", patched.Blur.Passes)
	}

	patched, err = base.Patch("caption.enabled", false)
	if err != nil {
		t.Fatalf("patch caption.enabled: %v", err)
	}
	if patched.Caption.Enabled {
		t.Errorf("expected caption disabled")
	}

	patched, err = base.Patch("rotation", float64(90))
	if err != nil {
		t.Fatalf("patch rotation: %v", err)
	}
	if patched.Rotation != 90 {
		t.Errorf("expected rotation 90, got %d", patched.Rotation)
	}
}

func TestPatchRejectsUnknownPath(t *testing.T) {
	base := DefaultSettings()
	if _, err := base.Patch("nonsense.path", 1); err == nil {
		t.Fatalf("expected error for unknown path")
	}
}

func TestPatchRejectsInvalidValue(t *testing.T) {
	base := DefaultSettings()

	if _, err := base.Patch("rotation", float64(45)); err == nil {
		t.Fatalf("expected error for rotation 45")
	}
	if _, err := base.Patch("background", "purple"); err == nil {
		t.Fatalf("expected error for unknown background")
	}
	if _, err := base.Patch("display_duration", "not a duration"); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestStoreReplaceIsAtomicSnapshot(t *testing.T) {
	store := NewStore(DefaultSettings())

	snap := store.Load()
	patched, err := snap.Patch("transition_duration", "1s")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	store.Replace(patched)

	if got := store.Load().TransitionDuration.Std(); got != time.Second {
		t.Errorf("expected 1s after replace, got %v", got)
	}
	if snap.TransitionDuration.Std() != 500*time.Millisecond {
		t.Errorf("old snapshot must be unaffected")
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.override.yaml")

	s := DefaultSettings()
	s.Rotation = 180
	s.Blur.Passes = 4
	if err := SaveOverride(path, s); err != nil {
		t.Fatalf("save override: %v", err)
	}

	loaded, err := ApplyOverride(path, DefaultSettings())
	if err != nil {
		t.Fatalf("apply override: %v", err)
	}
	if loaded.Rotation != 180 {
		t.Errorf("expected rotation 180, got %d", loaded.Rotation)
	}
	if loaded.Blur.Passes != 4 {
		t.Errorf("expected 4 passes, got %d", loaded.Blur.Passes)
	}
}

func TestOverrideMissingFileIsNotAnError(t *testing.T) {
	loaded, err := ApplyOverride(filepath.Join(t.TempDir(), "absent.yaml"), DefaultSettings())
	if err != nil {
		t.Fatalf("missing override must not error: %v", err)
	}
	if loaded != DefaultSettings() {
		t.Errorf("expected base settings back")
	}
}

func TestOverridePathSitsNextToConfig(t *testing.T) {
	got := OverridePath("/etc/memocadre/memocadre.yaml")
	want := "/etc/memocadre/settings.override.yaml"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
