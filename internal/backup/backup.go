// Package backup implements the Backup Store (C7): pre-mutation tag
// snapshots plus a shared cover file per backup, and restore. The
// on-disk directory layout (<BACKUP_ROOT>/<backupId>/cover.{jpg|png})
// and its Put/Delete/Exists operations are adapted from the teacher's
// pkg/objstore.LocalFS, narrowed from a generic key/value blob store
// into this one directory-tree shape — it no longer needs GetRange,
// Size or a generic key namespace, only "write a backup's cover" and
// "delete a backup's directory before its row."
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/musictaggerz/core/internal/model"
	"github.com/musictaggerz/core/internal/tagcodec"
)

// Store captures and restores tag backups under root.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root %q: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) dirFor(backupID string) string {
	return filepath.Join(s.root, backupID)
}

// snapshotDoc is the serialized tag record (cover excluded) stored per
// TrackTagSnapshot.TagDataJSON.
type snapshotDoc struct {
	Title, Artist, AlbumArtist, Album *string
	TrackNumber, TrackTotal           *int
	DiscNumber, DiscTotal             *int
	Year                              *int
	Genre, Label, Country             *string
	ReleaseID, RecordingID            *string
}

func toDoc(r tagcodec.Record) snapshotDoc {
	return snapshotDoc{
		Title: r.Title, Artist: r.Artist, AlbumArtist: r.AlbumArtist, Album: r.Album,
		TrackNumber: r.TrackNumber, TrackTotal: r.TrackTotal, DiscNumber: r.DiscNumber, DiscTotal: r.DiscTotal,
		Year: r.Year, Genre: r.Genre, Label: r.Label, Country: r.Country,
		ReleaseID: r.ReleaseID, RecordingID: r.RecordingID,
	}
}

func (d snapshotDoc) applyOnto(r tagcodec.Record) tagcodec.Record {
	if d.Title != nil {
		r.Title = d.Title
	}
	if d.Artist != nil {
		r.Artist = d.Artist
	}
	if d.AlbumArtist != nil {
		r.AlbumArtist = d.AlbumArtist
	}
	if d.Album != nil {
		r.Album = d.Album
	}
	if d.TrackNumber != nil {
		r.TrackNumber = d.TrackNumber
	}
	if d.TrackTotal != nil {
		r.TrackTotal = d.TrackTotal
	}
	if d.DiscNumber != nil {
		r.DiscNumber = d.DiscNumber
	}
	if d.DiscTotal != nil {
		r.DiscTotal = d.DiscTotal
	}
	if d.Year != nil {
		r.Year = d.Year
	}
	if d.Genre != nil {
		r.Genre = d.Genre
	}
	if d.Label != nil {
		r.Label = d.Label
	}
	if d.Country != nil {
		r.Country = d.Country
	}
	if d.ReleaseID != nil {
		r.ReleaseID = d.ReleaseID
	}
	if d.RecordingID != nil {
		r.RecordingID = d.RecordingID
	}
	return r
}

// TrackRef is one track in scope for a backup.
type TrackRef struct {
	TrackID string
	Path    string
}

// ReadTagsFunc and WriteTagsFunc let tests substitute a fake codec
// instead of touching real audio files.
type ReadTagsFunc func(path string) (tagcodec.Record, error)
type WriteTagsFunc func(path string, rec tagcodec.Record) error

// CreateBackup reads the current tag record for every track in scope,
// serializes it (cover excluded), writes one shared cover file, and
// returns the TagBackup plus its TrackTagSnapshots. The caller is
// responsible for persisting both rows in one transactional step.
func CreateBackup(ctx context.Context, s *Store, albumID, action string, tracks []TrackRef, readTags ReadTagsFunc) (model.TagBackup, []model.TrackTagSnapshot, error) {
	backupID := uuid.NewString()
	dir := s.dirFor(backupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.TagBackup{}, nil, err
	}

	var snapshots []model.TrackTagSnapshot
	hasCover := false

	for _, tr := range tracks {
		rec, err := readTags(tr.Path)
		if err != nil {
			continue
		}

		if !hasCover && rec.CoverData != nil {
			ext := ".jpg"
			if rec.CoverMime == "image/png" {
				ext = ".png"
			}
			if err := os.WriteFile(filepath.Join(dir, "cover"+ext), rec.CoverData, 0o644); err == nil {
				hasCover = true
			}
		}

		docJSON, err := json.Marshal(toDoc(rec))
		if err != nil {
			return model.TagBackup{}, nil, err
		}
		snapshots = append(snapshots, model.TrackTagSnapshot{
			ID:          uuid.NewString(),
			BackupID:    backupID,
			TrackID:     tr.TrackID,
			TagDataJSON: string(docJSON),
		})
	}

	return model.TagBackup{ID: backupID, AlbumID: albumID, Action: action, HasCover: hasCover}, snapshots, nil
}

// RestoreBackup reads each snapshot, rehydrates the cover from disk,
// merges the snapshot's fields over a fresh read of the file (so
// non-backed-up fields survive), and writes. pathForTrack resolves a
// TrackTagSnapshot.TrackID back to its file path.
func RestoreBackup(backup model.TagBackup, snapshots []model.TrackTagSnapshot, s *Store, pathForTrack func(trackID string) (string, bool), readTags ReadTagsFunc, writeTags WriteTagsFunc) error {
	dir := s.dirFor(backup.ID)

	var cover []byte
	var coverMime string
	if backup.HasCover {
		for _, ext := range []string{".jpg", ".png"} {
			data, err := os.ReadFile(filepath.Join(dir, "cover"+ext))
			if err == nil {
				cover = data
				if ext == ".png" {
					coverMime = "image/png"
				} else {
					coverMime = "image/jpeg"
				}
				break
			}
		}
	}

	for _, snap := range snapshots {
		path, ok := pathForTrack(snap.TrackID)
		if !ok {
			continue
		}

		var doc snapshotDoc
		if err := json.Unmarshal([]byte(snap.TagDataJSON), &doc); err != nil {
			return err
		}

		current, err := readTags(path)
		if err != nil {
			current = tagcodec.Record{}
		}
		merged := doc.applyOnto(current)
		if cover != nil {
			merged.CoverData = cover
			merged.CoverMime = coverMime
		}

		if err := writeTags(path, merged); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes backupID's directory, then reports success so the
// caller can delete the row — directory first, so an orphan row is
// never left pointing at a missing directory (orphan rows, not orphan
// directories, are the unacceptable state per spec.md §4.7).
func (s *Store) Prune(backupID string) error {
	dir := s.dirFor(backupID)
	err := os.RemoveAll(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
