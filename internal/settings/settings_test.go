package settings

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/core/internal/model"
)

func TestDefaultsParsed(t *testing.T) {
	s := New()
	require.Equal(t, 85.0, s.Float(KeyConfidenceAutoThreshold, 0))
	require.Equal(t, 50.0, s.Float(KeyConfidenceReviewThreshold, 0))
}

func TestSetBumpsVersion(t *testing.T) {
	s := New()
	v0 := s.Version()
	s.Set(model.Setting{Key: KeyMusicDir, Value: "/music", ValueType: model.SettingString})
	require.NotEqual(t, v0, s.Version())
}

func TestListSplitsAndTrims(t *testing.T) {
	s := New()
	s.Set(model.Setting{Key: KeyPreferredCountries, Value: "GB, US , DE", ValueType: model.SettingList})
	require.Equal(t, []string{"GB", "US", "DE"}, s.List(KeyPreferredCountries))
}

func TestVersionedCacheRebuildsOnSettingsChange(t *testing.T) {
	s := New()
	var builds int
	var cache VersionedCache[int]

	build := func(*Store) int {
		builds++
		return builds
	}

	v1 := cache.Get(s, build)
	v2 := cache.Get(s, build)
	require.Equal(t, v1, v2)
	require.Equal(t, 1, builds)

	s.Set(model.Setting{Key: KeyMusicDir, Value: "/new", ValueType: model.SettingString})
	v3 := cache.Get(s, build)
	require.NotEqual(t, v1, v3)
	require.Equal(t, 2, builds)
}
