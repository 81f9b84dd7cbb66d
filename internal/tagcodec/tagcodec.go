// Package tagcodec provides a uniform read/write tag record across
// FLAC, MP3, M4A and OGG-Vorbis/Opus, backed by go.senan.xyz/taglib so
// one codepath spans all four format families instead of four
// per-format encoders.
package tagcodec

import (
	"fmt"

	"go.senan.xyz/taglib"
)

// ErrKind discriminates codec failures the caller needs to branch on.
type ErrKind int

const (
	ErrUnsupportedFormat ErrKind = iota
	ErrCorruptFile
)

// Error is returned for read/write failures; callers generally only
// check the boolean success of Write and log Error's message.
type Error struct {
	Kind ErrKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnsupportedFormat:
		return fmt.Sprintf("tagcodec: unsupported format: %s", e.Path)
	default:
		return fmt.Sprintf("tagcodec: corrupt file %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Record is the uniform tag record exposed to the rest of the
// pipeline. Pointer fields are "unset" (leave existing tag alone) when
// nil during a Write; CoverData/CoverMime are the exception — a
// non-nil CoverData always replaces the existing front cover.
type Record struct {
	Title       *string
	Artist      *string
	AlbumArtist *string
	Album       *string
	TrackNumber *int
	TrackTotal  *int
	DiscNumber  *int
	DiscTotal   *int
	Year        *int
	Genre       *string
	Label       *string
	Country     *string
	ReleaseID   *string
	RecordingID *string

	LyricsPlain *string
	LyricsLRC   *string

	ReplaygainTrackGain *float64
	ReplaygainTrackPeak *float64
	ReplaygainAlbumGain *float64
	ReplaygainAlbumPeak *float64

	CoverData []byte
	CoverMime string
}

var supportedExt = map[string]bool{
	".flac": true, ".mp3": true, ".m4a": true, ".mp4": true,
	".ogg": true, ".oga": true, ".opus": true,
}

// freeform tag keys used for fields taglib has no first-class constant
// for; these are the canonical Vorbis-comment/ID3/MP4 "freeform" keys
// taglib maps onto whichever container is in play.
const (
	keyReleaseID       = "MUSICBRAINZ_ALBUMID"
	keyRecordingID     = "MUSICBRAINZ_TRACKID"
	keyLabel           = "LABEL"
	keyCountry         = "RELEASECOUNTRY"
	keyTrackTotal      = "TRACKTOTAL"
	keyDiscTotal       = "DISCTOTAL"
	keyLyrics          = "LYRICS"
	keyLyricsSynced    = "SYNCEDLYRICS"
	keyRGTrackGain     = "REPLAYGAIN_TRACK_GAIN"
	keyRGTrackPeak     = "REPLAYGAIN_TRACK_PEAK"
	keyRGAlbumGain     = "REPLAYGAIN_ALBUM_GAIN"
	keyRGAlbumPeak     = "REPLAYGAIN_ALBUM_PEAK"
)

// Supported reports whether ext (including the leading dot, any case)
// names one of the four supported format families.
func Supported(ext string) bool {
	return supportedExt[normalizeExt(ext)]
}

// Read returns the full tag record present in the file at path.
func Read(path string) (Record, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return Record{}, &Error{Kind: ErrCorruptFile, Path: path, Err: err}
	}

	r := Record{
		Title:       firstPtr(tags, taglib.Title),
		Artist:      firstPtr(tags, taglib.Artist),
		AlbumArtist: firstPtr(tags, taglib.AlbumArtist),
		Album:       firstPtr(tags, taglib.Album),
		Genre:       firstPtr(tags, taglib.Genre),
		Label:       firstPtr(tags, keyLabel),
		Country:     firstPtr(tags, keyCountry),
		ReleaseID:   firstPtr(tags, keyReleaseID),
		RecordingID: firstPtr(tags, keyRecordingID),
		LyricsPlain: firstPtr(tags, keyLyrics),
		LyricsLRC:   firstPtr(tags, keyLyricsSynced),
	}
	r.TrackNumber = firstIntPtr(tags, taglib.TrackNumber)
	r.DiscNumber = firstIntPtr(tags, taglib.DiscNumber)
	r.TrackTotal = firstIntPtr(tags, keyTrackTotal)
	r.DiscTotal = firstIntPtr(tags, keyDiscTotal)
	r.Year = firstIntPtr(tags, taglib.Date)
	r.ReplaygainTrackGain = firstFloatPtr(tags, keyRGTrackGain)
	r.ReplaygainTrackPeak = firstFloatPtr(tags, keyRGTrackPeak)
	r.ReplaygainAlbumGain = firstFloatPtr(tags, keyRGAlbumGain)
	r.ReplaygainAlbumPeak = firstFloatPtr(tags, keyRGAlbumPeak)

	if img, err := taglib.ReadImage(path); err == nil && len(img) > 0 {
		r.CoverData = img
		r.CoverMime = sniffImageMime(img)
	}

	return r, nil
}

// Write merges rec's non-nil fields into the file's existing tags and
// writes the result back. Unset fields never clear existing tags.
// CoverData, when non-nil, replaces the existing front cover; a nil
// CoverData leaves any existing cover untouched.
func Write(path string, rec Record) error {
	if !Supported(extOf(path)) {
		return &Error{Kind: ErrUnsupportedFormat, Path: path}
	}

	existing, err := taglib.ReadTags(path)
	if err != nil {
		existing = map[string][]string{}
	}

	set := func(key string, v *string) {
		if v != nil {
			existing[key] = []string{*v}
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			existing[key] = []string{fmt.Sprintf("%d", *v)}
		}
	}
	setFloat := func(key string, v *float64) {
		if v != nil {
			existing[key] = []string{fmt.Sprintf("%.2f", *v)}
		}
	}

	set(taglib.Title, rec.Title)
	set(taglib.Artist, rec.Artist)
	set(taglib.AlbumArtist, rec.AlbumArtist)
	set(taglib.Album, rec.Album)
	set(taglib.Genre, rec.Genre)
	set(keyLabel, rec.Label)
	set(keyCountry, rec.Country)
	set(keyReleaseID, rec.ReleaseID)
	set(keyRecordingID, rec.RecordingID)
	set(keyLyrics, rec.LyricsPlain)
	set(keyLyricsSynced, rec.LyricsLRC)
	setInt(taglib.TrackNumber, rec.TrackNumber)
	setInt(taglib.DiscNumber, rec.DiscNumber)
	setInt(keyTrackTotal, rec.TrackTotal)
	setInt(keyDiscTotal, rec.DiscTotal)
	setInt(taglib.Date, rec.Year)
	setFloat(keyRGTrackGain, rec.ReplaygainTrackGain)
	setFloat(keyRGTrackPeak, rec.ReplaygainTrackPeak)
	setFloat(keyRGAlbumGain, rec.ReplaygainAlbumGain)
	setFloat(keyRGAlbumPeak, rec.ReplaygainAlbumPeak)

	if err := taglib.WriteTags(path, existing, 0); err != nil {
		return &Error{Kind: ErrCorruptFile, Path: path, Err: err}
	}

	if rec.CoverData != nil {
		if err := taglib.WriteImage(path, rec.CoverData); err != nil {
			return &Error{Kind: ErrCorruptFile, Path: path, Err: err}
		}
	}

	return nil
}

func firstPtr(tags map[string][]string, key string) *string {
	if vals, ok := tags[key]; ok && len(vals) > 0 && vals[0] != "" {
		v := vals[0]
		return &v
	}
	return nil
}

func firstIntPtr(tags map[string][]string, key string) *int {
	s := firstPtr(tags, key)
	if s == nil {
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(*s, "%d", &n); err != nil {
		return nil
	}
	return &n
}

func firstFloatPtr(tags map[string][]string, key string) *float64 {
	s := firstPtr(tags, key)
	if s == nil {
		return nil
	}
	var f float64
	if _, err := fmt.Sscanf(*s, "%g", &f); err != nil {
		return nil
	}
	return &f
}

func sniffImageMime(data []byte) string {
	switch {
	case len(data) >= 8 && data[0] == 0x89 && data[1] == 'P':
		return "image/png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 12 && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
