// Package settings holds the typed key/value Settings table from
// spec.md §6 plus a version counter: every Set bumps the Store's
// version, and VersionedCache rebuilds a cached value when that version
// has moved on. No cache in this repository uses VersionedCache:
// the disc-pattern set and the artwork source list are built once at
// startup, and the rate-limit intervals are constants, so a later Set
// does not change them.
package settings

import (
	"strconv"
	"strings"
	"sync"

	"github.com/musictaggerz/core/internal/model"
)

// Recognized keys, per spec.md §6.
const (
	KeyMusicDir                   = "music_dir"
	KeyDatabaseURL                = "database_url"
	KeyConfidenceAutoThreshold    = "confidence_auto_threshold"
	KeyConfidenceReviewThreshold  = "confidence_review_threshold"
	KeyAutoTagOnScan              = "auto_tag_on_scan"
	KeyArtworkMinSize             = "artwork_min_size"
	KeyArtworkMaxSize             = "artwork_max_size"
	KeyArtworkSources             = "artwork_sources"
	KeyPreferredCountries         = "preferred_countries"
	KeyPreferredMedia             = "preferred_media"
	KeyDiscSubfolderPatterns      = "disc_subfolder_patterns"
	KeyFanartTVAPIKey             = "fanarttv_api_key"
	KeyAcoustIDAPIKey             = "acoustid_api_key"
	KeyFingerprintEnabled         = "fingerprint_enabled"
	KeyLyricsEnabled              = "lyrics_enabled"
	KeyLyricsAutoFetch            = "lyrics_auto_fetch"
	KeyReplaygainEnabled          = "replaygain_enabled"
	KeyReplaygainAutoCalculate    = "replaygain_auto_calculate"
	KeyReplaygainReferenceLoudness = "replaygain_reference_loudness"
	KeyBackupEnabled              = "backup_enabled"
	KeyBackupMaxPerAlbum          = "backup_max_per_album"
	KeyWatchStabilizationDelay    = "watch_stabilization_delay"
)

// Defaults mirrors spec.md's documented default values where named.
func Defaults() map[string]model.Setting {
	return map[string]model.Setting{
		KeyConfidenceAutoThreshold:   {Key: KeyConfidenceAutoThreshold, Value: "85", ValueType: model.SettingFloat},
		KeyConfidenceReviewThreshold: {Key: KeyConfidenceReviewThreshold, Value: "50", ValueType: model.SettingFloat},
		KeyAutoTagOnScan:             {Key: KeyAutoTagOnScan, Value: "true", ValueType: model.SettingBool},
		KeyArtworkMinSize:            {Key: KeyArtworkMinSize, Value: "500", ValueType: model.SettingInt},
		KeyReplaygainReferenceLoudness: {Key: KeyReplaygainReferenceLoudness, Value: "-18", ValueType: model.SettingFloat},
		KeyBackupEnabled:             {Key: KeyBackupEnabled, Value: "true", ValueType: model.SettingBool},
		KeyBackupMaxPerAlbum:         {Key: KeyBackupMaxPerAlbum, Value: "5", ValueType: model.SettingInt},
		KeyWatchStabilizationDelay:   {Key: KeyWatchStabilizationDelay, Value: "10", ValueType: model.SettingInt},
	}
}

// Store is an in-memory, version-counted mirror of the persisted
// settings table. The façade's write path (out of scope here) would
// call Set; every Set bumps Version so dependent in-memory caches can
// detect staleness.
type Store struct {
	mu      sync.RWMutex
	values  map[string]model.Setting
	version uint64
}

// New builds a Store seeded with Defaults.
func New() *Store {
	return &Store{values: Defaults(), version: 1}
}

// Version returns the current settings version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns the raw setting, if set.
func (s *Store) Get(key string) (model.Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and bumps Version, invalidating any cache keyed on
// an older version.
func (s *Store) Set(setting model.Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[setting.Key] = setting
	s.version++
}

// Float returns key's value parsed as a float64, or def if unset/unparseable.
func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v.Value, 64)
	if err != nil {
		return def
	}
	return f
}

// Int returns key's value parsed as an int, or def if unset/unparseable.
func (s *Store) Int(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return def
	}
	return n
}

// Bool returns key's value parsed as a bool, or def if unset/unparseable.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v.Value)
	if err != nil {
		return def
	}
	return b
}

// List returns key's value split on commas, trimmed, or nil if unset.
func (s *Store) List(key string) []string {
	v, ok := s.Get(key)
	if !ok || v.Value == "" {
		return nil
	}
	parts := strings.Split(v.Value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// VersionedCache is a tiny helper embedding the "carry the version you
// were built under, rebuild on mismatch" pattern spec.md §9 describes.
// Nothing outside this package's tests constructs one.
type VersionedCache[T any] struct {
	mu      sync.Mutex
	version uint64
	value   T
	built   bool
}

// Get returns the cached value if it was built under the current
// settings version; otherwise it calls build, caches, and returns the
// fresh value.
func (c *VersionedCache[T]) Get(s *Store, build func(*Store) T) T {
	cur := s.Version()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.built && c.version == cur {
		return c.value
	}
	c.value = build(s)
	c.version = cur
	c.built = true
	return c.value
}
