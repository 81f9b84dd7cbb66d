// Package store is the persistent-store implementation named as an
// external collaborator in spec.md §1 ("a simple typed key/value or
// row-store"). It is SQLite via modernc.org/sqlite rather than the
// teacher's Postgres/pgx, because spec.md §6 specifies
// journal_mode=WAL and foreign_keys=ON — SQLite pragmas with no
// Postgres equivalent (see DESIGN.md). The hand-written-SQL,
// manual-struct-scanning, ON CONFLICT DO UPDATE, embedded-migration
// style is kept from the teacher's pkg/store/store.go and migrate.go.
package store

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/musictaggerz/core/internal/model"
)

//go:embed migrate.sql
var migrateSQL string

// Store wraps a *sql.DB opened against a SQLite database with WAL
// mode and foreign keys enabled, per spec.md §5's "Shared resources".
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dsn, a file
// path or ":memory:". WAL mode and foreign keys are set on open, and
// Migrate must be called once before use.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies the full schema idempotently; safe on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migrateSQL)
	return err
}

// UpsertAlbum inserts a new album or updates an existing one by id.
func (s *Store) UpsertAlbum(ctx context.Context, a model.Album) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO albums (id, absolute_path, artist, title, year, status, match_confidence, release_id, release_group_id, cover_path, track_count, retry_count, error_message, replaygain_album_gain, replaygain_album_peak, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	artist = excluded.artist, title = excluded.title, year = excluded.year,
	status = excluded.status, match_confidence = excluded.match_confidence,
	release_id = excluded.release_id, release_group_id = excluded.release_group_id,
	cover_path = excluded.cover_path, track_count = excluded.track_count,
	retry_count = excluded.retry_count, error_message = excluded.error_message,
	replaygain_album_gain = excluded.replaygain_album_gain,
	replaygain_album_peak = excluded.replaygain_album_peak,
	updated_at = excluded.updated_at`,
		a.ID, a.AbsolutePath, a.Artist, a.Title, a.Year, string(a.Status), a.MatchConfidence,
		a.ReleaseID, a.ReleaseGroupID, a.CoverPath, a.TrackCount, a.RetryCount, a.ErrorMessage,
		a.ReplaygainAlbumGain, a.ReplaygainAlbumPeak, timeOrNow(a.CreatedAt), timeOrNow(a.UpdatedAt))
	return err
}

// GetAlbumByPath looks up an album by its unique absolute path.
func (s *Store) GetAlbumByPath(ctx context.Context, path string) (*model.Album, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, absolute_path, artist, title, year, status, match_confidence, release_id, release_group_id, cover_path, track_count, retry_count, error_message, replaygain_album_gain, replaygain_album_peak, created_at, updated_at
FROM albums WHERE absolute_path = ?`, path)
	return scanAlbum(row)
}

// GetAlbumByID looks up an album by id.
func (s *Store) GetAlbumByID(ctx context.Context, id string) (*model.Album, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, absolute_path, artist, title, year, status, match_confidence, release_id, release_group_id, cover_path, track_count, retry_count, error_message, replaygain_album_gain, replaygain_album_peak, created_at, updated_at
FROM albums WHERE id = ?`, id)
	return scanAlbum(row)
}

// ListAlbumPaths returns every album's absolute path, used to hydrate
// the Watcher's known-path set at startup.
func (s *Store) ListAlbumPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT absolute_path FROM albums`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteAlbum removes an album (cascading to tracks, candidates,
// backups per the schema's ON DELETE CASCADE).
func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlbum(row rowScanner) (*model.Album, error) {
	var a model.Album
	var status string
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.AbsolutePath, &a.Artist, &a.Title, &a.Year, &status,
		&a.MatchConfidence, &a.ReleaseID, &a.ReleaseGroupID, &a.CoverPath, &a.TrackCount,
		&a.RetryCount, &a.ErrorMessage, &a.ReplaygainAlbumGain, &a.ReplaygainAlbumPeak,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Status = model.AlbumStatus(status)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

// UpsertTrack inserts or updates a track row.
func (s *Store) UpsertTrack(ctx context.Context, tr model.Track) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tracks (id, album_id, absolute_path, disc_number, track_number, title, artist, duration, recording_id, status, error_message, has_lyrics, lyrics_synced, replaygain_track_gain, replaygain_track_peak)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	disc_number = excluded.disc_number, track_number = excluded.track_number,
	title = excluded.title, artist = excluded.artist, duration = excluded.duration,
	recording_id = excluded.recording_id, status = excluded.status,
	error_message = excluded.error_message, has_lyrics = excluded.has_lyrics,
	lyrics_synced = excluded.lyrics_synced,
	replaygain_track_gain = excluded.replaygain_track_gain,
	replaygain_track_peak = excluded.replaygain_track_peak`,
		tr.ID, tr.AlbumID, tr.AbsolutePath, tr.DiscNumber, tr.TrackNumber, tr.Title, tr.Artist,
		tr.Duration, tr.RecordingID, string(tr.Status), tr.ErrorMessage, tr.HasLyrics, tr.LyricsSynced,
		tr.ReplaygainTrackGain, tr.ReplaygainTrackPeak)
	return err
}

// ListTracksByAlbum returns every track belonging to albumID, ordered
// by (disc_number, track_number).
func (s *Store) ListTracksByAlbum(ctx context.Context, albumID string) ([]model.Track, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, album_id, absolute_path, disc_number, track_number, title, artist, duration, recording_id, status, error_message, has_lyrics, lyrics_synced, replaygain_track_gain, replaygain_track_peak
FROM tracks WHERE album_id = ? ORDER BY disc_number, track_number`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Track
	for rows.Next() {
		var tr model.Track
		var status string
		if err := rows.Scan(&tr.ID, &tr.AlbumID, &tr.AbsolutePath, &tr.DiscNumber, &tr.TrackNumber,
			&tr.Title, &tr.Artist, &tr.Duration, &tr.RecordingID, &status, &tr.ErrorMessage,
			&tr.HasLyrics, &tr.LyricsSynced, &tr.ReplaygainTrackGain, &tr.ReplaygainTrackPeak); err != nil {
			return nil, err
		}
		tr.Status = model.TrackStatus(status)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// DeleteTrack removes one track row (used by the Scanner's incremental
// reconciliation to prune tracks no longer on disk).
func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	return err
}

// ReplaceMatchCandidates deletes all existing candidates for albumID
// and inserts the new set, per spec.md §3's "regenerated on every
// match" invariant.
func (s *Store) ReplaceMatchCandidates(ctx context.Context, albumID string, candidates []model.MatchCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_candidates WHERE album_id = ?`, albumID); err != nil {
		return err
	}
	for _, c := range candidates {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO match_candidates (id, album_id, release_id, confidence, artist, title, year, original_year, track_count, country, media, label, barcode, is_selected)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, albumID, c.ReleaseID, c.Confidence, c.Artist, c.Title, c.Year, c.OriginalYear,
			c.TrackCount, c.Country, c.Media, c.Label, c.Barcode, c.IsSelected); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendActivityLog inserts one append-only event.
func (s *Store) AppendActivityLog(ctx context.Context, log model.ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activity_log (id, timestamp, album_id, action, details) VALUES (?, ?, ?, ?, ?)`,
		log.ID, timeOrNow(log.Timestamp), log.AlbumID, log.Action, log.Details)
	return err
}

// InsertBackup persists a tag backup header and its per-track
// snapshots in one transaction.
func (s *Store) InsertBackup(ctx context.Context, b model.TagBackup, snapshots []model.TrackTagSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO tag_backups (id, album_id, action, created_at, has_cover) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.AlbumID, b.Action, timeOrNow(b.CreatedAt), b.HasCover); err != nil {
		return err
	}
	for _, snap := range snapshots {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO track_tag_snapshots (id, backup_id, track_id, tag_data_json) VALUES (?, ?, ?, ?)`,
			snap.ID, snap.BackupID, snap.TrackID, snap.TagDataJSON); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBackupsByAlbum returns an album's backups ordered oldest-first.
func (s *Store) ListBackupsByAlbum(ctx context.Context, albumID string) ([]model.TagBackup, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, album_id, action, created_at, has_cover FROM tag_backups WHERE album_id = ? ORDER BY created_at`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TagBackup
	for rows.Next() {
		var b model.TagBackup
		var createdAt string
		if err := rows.Scan(&b.ID, &b.AlbumID, &b.Action, &createdAt, &b.HasCover); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBackup looks up one backup header by id.
func (s *Store) GetBackup(ctx context.Context, id string) (*model.TagBackup, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, album_id, action, created_at, has_cover FROM tag_backups WHERE id = ?`, id)
	var b model.TagBackup
	var createdAt string
	err := row.Scan(&b.ID, &b.AlbumID, &b.Action, &createdAt, &b.HasCover)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// ListSnapshotsByBackup returns every track snapshot belonging to backupID.
func (s *Store) ListSnapshotsByBackup(ctx context.Context, backupID string) ([]model.TrackTagSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, backup_id, track_id, tag_data_json FROM track_tag_snapshots WHERE backup_id = ?`, backupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrackTagSnapshot
	for rows.Next() {
		var snap model.TrackTagSnapshot
		if err := rows.Scan(&snap.ID, &snap.BackupID, &snap.TrackID, &snap.TagDataJSON); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DeleteBackup removes one backup row (cascading to its snapshots).
func (s *Store) DeleteBackup(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tag_backups WHERE id = ?`, id)
	return err
}

func timeOrNow(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.Format(time.RFC3339)
}
