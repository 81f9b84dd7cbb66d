// Package config provides environment-variable-driven bootstrap
// configuration, adapted from the teacher's pkg/config.Env/DSN helpers
// and generalized to seed the full Settings table (C13) once at
// process startup instead of a single Postgres DSN.
package config

import (
	"os"
	"strconv"

	"github.com/musictaggerz/core/internal/model"
	"github.com/musictaggerz/core/internal/settings"
)

// DefaultDatabaseURL is the fallback SQLite DSN used when DATABASE_URL
// is unset.
const DefaultDatabaseURL = "taggerz.db"

// DefaultMusicDir is the fallback music root used when MUSIC_DIR is unset.
const DefaultMusicDir = "/music"

// Env returns the value of the environment variable key, or def if unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DatabaseURL returns the SQLite DSN from DATABASE_URL, falling back to
// DefaultDatabaseURL.
func DatabaseURL() string {
	return Env("DATABASE_URL", DefaultDatabaseURL)
}

// MusicDir returns the music root from MUSIC_DIR, falling back to
// DefaultMusicDir.
func MusicDir() string {
	return Env("MUSIC_DIR", DefaultMusicDir)
}

// envOverride maps a settings key to the environment variable name that
// may override its default at bootstrap.
var envOverride = map[string]string{
	settings.KeyConfidenceAutoThreshold:    "CONFIDENCE_AUTO_THRESHOLD",
	settings.KeyConfidenceReviewThreshold:  "CONFIDENCE_REVIEW_THRESHOLD",
	settings.KeyAutoTagOnScan:              "AUTO_TAG_ON_SCAN",
	settings.KeyArtworkMinSize:             "ARTWORK_MIN_SIZE",
	settings.KeyArtworkMaxSize:              "ARTWORK_MAX_SIZE",
	settings.KeyArtworkSources:              "ARTWORK_SOURCES",
	settings.KeyPreferredCountries:          "PREFERRED_COUNTRIES",
	settings.KeyPreferredMedia:              "PREFERRED_MEDIA",
	settings.KeyDiscSubfolderPatterns:       "DISC_SUBFOLDER_PATTERNS",
	settings.KeyFanartTVAPIKey:              "FANARTTV_API_KEY",
	settings.KeyAcoustIDAPIKey:              "ACOUSTID_API_KEY",
	settings.KeyFingerprintEnabled:          "FINGERPRINT_ENABLED",
	settings.KeyLyricsEnabled:               "LYRICS_ENABLED",
	settings.KeyLyricsAutoFetch:             "LYRICS_AUTO_FETCH",
	settings.KeyReplaygainEnabled:           "REPLAYGAIN_ENABLED",
	settings.KeyReplaygainAutoCalculate:     "REPLAYGAIN_AUTO_CALCULATE",
	settings.KeyReplaygainReferenceLoudness: "REPLAYGAIN_REFERENCE_LOUDNESS",
	settings.KeyBackupEnabled:               "BACKUP_ENABLED",
	settings.KeyBackupMaxPerAlbum:           "BACKUP_MAX_PER_ALBUM",
	settings.KeyWatchStabilizationDelay:     "WATCH_STABILIZATION_DELAY",
}

// valueTypeOf mirrors the ValueType a Defaults() entry carries, for the
// keys Defaults() doesn't already seed (so a bare env override still
// gets parsed correctly by Store.Float/Int/Bool).
var valueTypeOf = map[string]model.SettingValueType{
	settings.KeyArtworkMaxSize:              model.SettingInt,
	settings.KeyArtworkSources:               model.SettingString,
	settings.KeyPreferredCountries:           model.SettingString,
	settings.KeyPreferredMedia:               model.SettingString,
	settings.KeyDiscSubfolderPatterns:        model.SettingString,
	settings.KeyFanartTVAPIKey:               model.SettingString,
	settings.KeyAcoustIDAPIKey:               model.SettingString,
	settings.KeyFingerprintEnabled:           model.SettingBool,
	settings.KeyLyricsEnabled:                model.SettingBool,
	settings.KeyLyricsAutoFetch:              model.SettingBool,
	settings.KeyReplaygainEnabled:            model.SettingBool,
	settings.KeyReplaygainAutoCalculate:      model.SettingBool,
}

// LoadSettings seeds store with env-var overrides for every recognized
// key, read once at bootstrap per SPEC_FULL.md's ambient-stack
// configuration section. Keys left unset in the environment keep
// Defaults()' values (or remain unset, for keys with no default).
func LoadSettings(store *settings.Store) {
	for key, envVar := range envOverride {
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		vt := valueTypeOf[key]
		if vt == "" {
			if existing, ok := store.Get(key); ok {
				vt = existing.ValueType
			} else {
				vt = model.SettingString
			}
		}
		store.Set(model.Setting{Key: key, Value: raw, ValueType: vt})
	}

	store.Set(model.Setting{Key: settings.KeyMusicDir, Value: MusicDir(), ValueType: model.SettingString})
	store.Set(model.Setting{Key: settings.KeyDatabaseURL, Value: DatabaseURL(), ValueType: model.SettingString})
}

// EnvInt parses key as an int, falling back to def when unset or
// unparseable.
func EnvInt(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
