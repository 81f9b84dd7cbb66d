// Package scanner implements the Scanner (C9): directory traversal up
// to two levels deep, album-folder discovery, insert vs incremental
// update vs forced re-insert, and per-disc-album subsumption when a
// multi-disc parent is discovered. Traversal style (filepath walking,
// slog progress logging) is grounded on the teacher's cmd/ingest scan
// loop, generalized from a flat-file worker pool into album-folder
// discovery.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/musictaggerz/core/internal/audiofolder"
	"github.com/musictaggerz/core/internal/model"
	"github.com/musictaggerz/core/internal/store"
	"github.com/musictaggerz/core/internal/tagcodec"
)

// Scanner discovers and reconciles album folders under a root directory.
type Scanner struct {
	Store    *store.Store
	Patterns []audiofolder.DiscPattern
	ReadTags func(path string) (tagcodec.Record, error)

	// Enqueue is called for every newly-discovered or changed album
	// path, auto-queuing it for matching per spec.md §4.9.
	Enqueue func(albumPath string)
}

// New builds a Scanner using tagcodec.Read as the default reader.
func New(s *store.Store, patterns []audiofolder.DiscPattern, enqueue func(string)) *Scanner {
	return &Scanner{Store: s, Patterns: patterns, ReadTags: tagcodec.Read, Enqueue: enqueue}
}

// ScanDirectory traverses root and reconciles every discovered album
// folder against the persistent store.
func (s *Scanner) ScanDirectory(ctx context.Context, root string, force bool) error {
	folders, err := discoverAlbumFolders(root, s.Patterns)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		if err := s.processFolder(ctx, folder, force); err != nil {
			slog.Warn("scanner: process folder failed", "path", folder, "err", err)
		}
	}
	return nil
}

// discoverAlbumFolders walks root's children; a child classified as an
// album (flat or multi-disc) is itself an album folder, otherwise it is
// recursed into one level for an artist/album layout.
func discoverAlbumFolders(root string, patterns []audiofolder.DiscPattern) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childPath := filepath.Join(root, e.Name())
		cls, err := audiofolder.Classify(childPath, patterns)
		if err != nil {
			continue
		}
		if cls != audiofolder.NonAlbum {
			folders = append(folders, childPath)
			continue
		}

		grandEntries, err := os.ReadDir(childPath)
		if err != nil {
			continue
		}
		for _, g := range grandEntries {
			if !g.IsDir() {
				continue
			}
			gPath := filepath.Join(childPath, g.Name())
			gcls, err := audiofolder.Classify(gPath, patterns)
			if err == nil && gcls != audiofolder.NonAlbum {
				folders = append(folders, gPath)
			}
		}
	}
	return folders, nil
}

func (s *Scanner) processFolder(ctx context.Context, path string, force bool) error {
	agg, err := audiofolder.ScanAlbum(path, s.Patterns, s.ReadTags)
	if err != nil {
		return err
	}
	if agg == nil {
		return nil
	}

	existing, err := s.Store.GetAlbumByPath(ctx, path)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := s.removeSubsumedPerDiscAlbums(ctx, path); err != nil {
			slog.Warn("scanner: remove subsumed per-disc albums failed", "path", path, "err", err)
		}
		return s.insertAlbum(ctx, path, agg, "scanned")
	}

	if force {
		if err := s.Store.DeleteAlbum(ctx, existing.ID); err != nil {
			return err
		}
		return s.insertAlbum(ctx, path, agg, "scanned")
	}

	return s.incrementalUpdate(ctx, *existing, agg)
}

func (s *Scanner) insertAlbum(ctx context.Context, path string, agg *audiofolder.Aggregate, action string) error {
	albumID := uuid.NewString()
	album := model.Album{
		ID:           albumID,
		AbsolutePath: path,
		Artist:       agg.Artist,
		Title:        agg.Title,
		Year:         agg.Year,
		Status:       model.AlbumPending,
		TrackCount:   agg.TrackCount,
	}
	if err := s.Store.UpsertAlbum(ctx, album); err != nil {
		return err
	}
	for _, tr := range agg.Tracks {
		if err := s.Store.UpsertTrack(ctx, toModelTrack(uuid.NewString(), albumID, tr)); err != nil {
			return err
		}
	}
	if err := s.Store.AppendActivityLog(ctx, model.ActivityLog{ID: uuid.NewString(), AlbumID: &albumID, Action: action}); err != nil {
		slog.Warn("scanner: append activity log failed", "path", path, "err", err)
	}
	if s.Enqueue != nil {
		s.Enqueue(path)
	}
	return nil
}

func (s *Scanner) incrementalUpdate(ctx context.Context, existing model.Album, agg *audiofolder.Aggregate) error {
	existingTracks, err := s.Store.ListTracksByAlbum(ctx, existing.ID)
	if err != nil {
		return err
	}

	onDisk := map[string]bool{}
	for _, tr := range agg.Tracks {
		onDisk[tr.Path] = true
	}
	byPath := map[string]model.Track{}
	for _, tr := range existingTracks {
		byPath[tr.AbsolutePath] = tr
	}

	changed := false
	for _, tr := range agg.Tracks {
		if _, ok := byPath[tr.Path]; !ok {
			if err := s.Store.UpsertTrack(ctx, toModelTrack(uuid.NewString(), existing.ID, tr)); err != nil {
				return err
			}
			changed = true
		}
	}
	for path, tr := range byPath {
		if !onDisk[path] {
			if err := s.Store.DeleteTrack(ctx, tr.ID); err != nil {
				return err
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}

	existing.TrackCount = agg.TrackCount
	existing.Status = model.AlbumPending
	if err := s.Store.UpsertAlbum(ctx, existing); err != nil {
		return err
	}
	if err := s.Store.AppendActivityLog(ctx, model.ActivityLog{ID: uuid.NewString(), AlbumID: &existing.ID, Action: "incremental_update"}); err != nil {
		slog.Warn("scanner: append activity log failed", "path", existing.AbsolutePath, "err", err)
	}
	if s.Enqueue != nil {
		s.Enqueue(existing.AbsolutePath)
	}
	return nil
}

// removeSubsumedPerDiscAlbums deletes any previously-scanned Album
// whose path is a descendant of parentPath — a per-disc subfolder that
// used to be its own Album record before parentPath was recognized as
// a multi-disc parent.
func (s *Scanner) removeSubsumedPerDiscAlbums(ctx context.Context, parentPath string) error {
	paths, err := s.Store.ListAlbumPaths(ctx)
	if err != nil {
		return err
	}
	prefix := parentPath + string(os.PathSeparator)
	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		album, err := s.Store.GetAlbumByPath(ctx, p)
		if err != nil || album == nil {
			continue
		}
		if err := s.Store.DeleteAlbum(ctx, album.ID); err != nil {
			return err
		}
	}
	return nil
}

func toModelTrack(id, albumID string, tr audiofolder.TrackRecord) model.Track {
	return model.Track{
		ID:           id,
		AlbumID:      albumID,
		AbsolutePath: tr.Path,
		DiscNumber:   tr.DiscNumber,
		TrackNumber:  tr.TrackNumber,
		Title:        tr.Title,
		Artist:       tr.Artist,
		Duration:     tr.Duration,
		Status:       model.TrackPending,
	}
}
