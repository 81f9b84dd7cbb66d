package config

import (
	"testing"

	"github.com/musictaggerz/core/internal/model"
	"github.com/musictaggerz/core/internal/settings"
)

func TestEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("SOME_UNSET_KEY_XYZ", "")
	if got := Env("SOME_UNSET_KEY_XYZ", "fallback"); got != "fallback" {
		t.Errorf("Env = %q, want fallback", got)
	}
}

func TestLoadSettingsAppliesOverride(t *testing.T) {
	t.Setenv("CONFIDENCE_AUTO_THRESHOLD", "95")
	t.Setenv("MUSIC_DIR", "/data/music")

	store := settings.New()
	LoadSettings(store)

	if got := store.Float(settings.KeyConfidenceAutoThreshold, -1); got != 95 {
		t.Errorf("confidence auto threshold = %v, want 95", got)
	}
	v, ok := store.Get(settings.KeyMusicDir)
	if !ok || v.Value != "/data/music" {
		t.Errorf("music dir = %+v, want /data/music", v)
	}
}

func TestLoadSettingsLeavesUnsetKeysAtDefault(t *testing.T) {
	store := settings.New()
	before, _ := store.Get(settings.KeyBackupMaxPerAlbum)
	LoadSettings(store)
	after, _ := store.Get(settings.KeyBackupMaxPerAlbum)
	if after.Value != before.Value {
		t.Errorf("expected backup_max_per_album unchanged, got %+v", after)
	}
}

func TestValueTypeOfCoversAllOverrideKeys(t *testing.T) {
	for key := range envOverride {
		if _, hasDefault := settings.Defaults()[key]; hasDefault {
			continue
		}
		if valueTypeOf[key] == model.SettingValueType("") {
			t.Errorf("override key %q has neither a default nor an explicit value type", key)
		}
	}
}
