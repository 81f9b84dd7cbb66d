// Package artwork implements the Artwork Selector (C6): discovery
// across five sources, priority-ordered auto-fetch accepting the first
// candidate meeting a minimum dimension, MIME detection via magic
// bytes, and embedding through the C1 read-merge-write codec.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/musictaggerz/core/internal/coverartarchive"
	"github.com/musictaggerz/core/internal/fanarttv"
	"github.com/musictaggerz/core/internal/itunes"
	"github.com/musictaggerz/core/internal/tagcodec"
)

// filenameHints are the lowercased substrings a filesystem cover image
// is recognized by, per spec.md §4.6.
var filenameHints = []string{"cover", "front", "folder", "albumart", "album", "artwork"}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// Candidate is one discovered artwork image with its decoded dimensions.
type Candidate struct {
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	SourceName string
}

// Request carries everything a Source might need to discover candidates.
type Request struct {
	AlbumDir            string
	ReleaseID           string
	CandidateReleaseIDs []string
	Artist              string
	Album               string
	ReleaseGroupID      string
}

// Source discovers zero or more artwork candidates for a request.
type Source interface {
	Name() string
	Discover(ctx context.Context, req Request) ([]Candidate, error)
}

// FilesystemSource discovers album-art files already present in the
// album directory, matched by filename hint and extension.
type FilesystemSource struct{}

func (FilesystemSource) Name() string { return "filesystem" }

func (FilesystemSource) Discover(ctx context.Context, req Request) ([]Candidate, error) {
	entries, err := os.ReadDir(req.AlbumDir)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		if !imageExts[ext] {
			continue
		}
		matched := false
		for _, hint := range filenameHints {
			if strings.Contains(name, hint) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		data, err := os.ReadFile(filepath.Join(req.AlbumDir, e.Name()))
		if err != nil {
			continue
		}
		cand, err := toCandidate(data, "filesystem")
		if err != nil {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// CoverArtArchiveSource discovers cover images from the Cover Art
// Archive, by the chosen release id and by every remaining match
// candidate's release id (labeled "candidate" per spec.md §4.6).
type CoverArtArchiveSource struct {
	Client *coverartarchive.Client
}

func (CoverArtArchiveSource) Name() string { return "coverart" }

func (s CoverArtArchiveSource) Discover(ctx context.Context, req Request) ([]Candidate, error) {
	var out []Candidate

	if req.ReleaseID != "" {
		if data, err := s.Client.FrontImage(ctx, req.ReleaseID); err == nil {
			if cand, err := toCandidate(data, "coverart"); err == nil {
				out = append(out, cand)
			}
		}
	}
	for _, relID := range req.CandidateReleaseIDs {
		if relID == req.ReleaseID {
			continue
		}
		if data, err := s.Client.FrontImage(ctx, relID); err == nil {
			if cand, err := toCandidate(data, "coverart_candidate"); err == nil {
				out = append(out, cand)
			}
		}
	}
	return out, nil
}

// ITunesSource discovers cover art via iTunes artist+album search.
type ITunesSource struct {
	Client *itunes.Client
}

func (ITunesSource) Name() string { return "itunes" }

func (s ITunesSource) Discover(ctx context.Context, req Request) ([]Candidate, error) {
	data, err := s.Client.FetchArtwork(ctx, req.Artist, req.Album)
	if err != nil {
		return nil, nil
	}
	cand, err := toCandidate(data, "itunes")
	if err != nil {
		return nil, nil
	}
	return []Candidate{cand}, nil
}

// FanartTVSource discovers cover art via fanart.tv by release-group id.
type FanartTVSource struct {
	Client *fanarttv.Client
}

func (FanartTVSource) Name() string { return "fanarttv" }

func (s FanartTVSource) Discover(ctx context.Context, req Request) ([]Candidate, error) {
	if req.ReleaseGroupID == "" {
		return nil, nil
	}
	data, err := s.Client.FetchArtwork(ctx, req.ReleaseGroupID)
	if err != nil {
		return nil, nil
	}
	cand, err := toCandidate(data, "fanarttv")
	if err != nil {
		return nil, nil
	}
	return []Candidate{cand}, nil
}

// SelectBest tries sources in the given priority order and returns the
// first candidate whose minimum dimension is >= minSize.
func SelectBest(ctx context.Context, sources []Source, req Request, minSize int) (Candidate, error) {
	for _, src := range sources {
		candidates, err := src.Discover(ctx, req)
		if err != nil {
			continue
		}
		for _, cand := range candidates {
			if minDim(cand) >= minSize {
				return cand, nil
			}
		}
	}
	return Candidate{}, fmt.Errorf("artwork: no candidate met minimum size %d", minSize)
}

func minDim(c Candidate) int {
	if c.Width < c.Height {
		return c.Width
	}
	return c.Height
}

// WriteCoverFile writes data as albumart.jpg or albumart.png (by mime)
// in albumDir, returning the written path.
func WriteCoverFile(albumDir string, data []byte, mimeType string) (string, error) {
	ext := ".jpg"
	if mimeType == "image/png" {
		ext = ".png"
	}
	path := filepath.Join(albumDir, "albumart"+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// EmbedInTracks embeds data as the front cover of every track path via
// the C1 read-merge-write codec, continuing past individual failures.
func EmbedInTracks(trackPaths []string, data []byte, mimeType string) error {
	var firstErr error
	for _, path := range trackPaths {
		rec, err := tagcodec.Read(path)
		if err != nil {
			rec = tagcodec.Record{}
		}
		rec.CoverData = data
		rec.CoverMime = mimeType
		if err := tagcodec.Write(path, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func toCandidate(data []byte, sourceName string) (Candidate, error) {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return Candidate{}, fmt.Errorf("artwork: not an image (%s)", mimeType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Data: data, MimeType: mimeType, Width: cfg.Width, Height: cfg.Height, SourceName: sourceName}, nil
}

// ResizeDownTo decodes data and, if either dimension exceeds maxSize,
// resizes it down to fit within maxSize x maxSize preserving aspect
// ratio, re-encoding as JPEG. Used when a discovered candidate exceeds
// artwork_max_size.
func ResizeDownTo(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("artwork: decode for resize: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxSize && bounds.Dy() <= maxSize {
		return data, nil
	}

	var resized image.Image
	if bounds.Dx() >= bounds.Dy() {
		resized = resize.Resize(uint(maxSize), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(maxSize), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
