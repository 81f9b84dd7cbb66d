package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/musictaggerz/core/internal/tagcodec"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestCreateBackupWritesCoverAndSnapshots(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	fakeRead := func(path string) (tagcodec.Record, error) {
		return tagcodec.Record{
			Title:     strp("Old Title"),
			CoverData: []byte{0xFF, 0xD8, 0xFF, 0xE0},
			CoverMime: "image/jpeg",
		}, nil
	}

	tracks := []TrackRef{{TrackID: "t1", Path: "/music/a/01.flac"}, {TrackID: "t2", Path: "/music/a/02.flac"}}
	tb, snaps, err := CreateBackup(context.Background(), s, "album1", "auto_tag", tracks, fakeRead)
	if err != nil {
		t.Fatal(err)
	}
	if !tb.HasCover {
		t.Error("expected HasCover true")
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	if _, err := os.Stat(filepath.Join(dir, tb.ID, "cover.jpg")); err != nil {
		t.Errorf("expected cover.jpg written: %v", err)
	}
}

func TestCreateBackupNoCoverWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	fakeRead := func(path string) (tagcodec.Record, error) {
		return tagcodec.Record{Title: strp("T")}, nil
	}

	tb, _, err := CreateBackup(context.Background(), s, "album1", "manual_edit", []TrackRef{{TrackID: "t1", Path: "/x.flac"}}, fakeRead)
	if err != nil {
		t.Fatal(err)
	}
	if tb.HasCover {
		t.Error("expected HasCover false when no cover present")
	}
}

func TestRestoreBackupMergesOverCurrentTags(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	fakeRead := func(path string) (tagcodec.Record, error) {
		return tagcodec.Record{Title: strp("Before Backup"), TrackNumber: intp(1)}, nil
	}
	tb, snaps, err := CreateBackup(context.Background(), s, "album1", "auto_tag", []TrackRef{{TrackID: "t1", Path: "/x.flac"}}, fakeRead)
	if err != nil {
		t.Fatal(err)
	}

	currentRead := func(path string) (tagcodec.Record, error) {
		return tagcodec.Record{Title: strp("After Auto-Tag"), TrackNumber: intp(1), Genre: strp("Rock")}, nil
	}

	var written tagcodec.Record
	writeFn := func(path string, rec tagcodec.Record) error {
		written = rec
		return nil
	}

	pathFor := func(trackID string) (string, bool) { return "/x.flac", true }

	if err := RestoreBackup(tb, snaps, s, pathFor, currentRead, writeFn); err != nil {
		t.Fatal(err)
	}

	if written.Title == nil || *written.Title != "Before Backup" {
		t.Errorf("expected restored title, got %v", written.Title)
	}
	if written.Genre == nil || *written.Genre != "Rock" {
		t.Error("expected non-backed-up field (Genre) to survive restore")
	}
}

func TestPruneRemovesDirectoryAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	fakeRead := func(path string) (tagcodec.Record, error) {
		return tagcodec.Record{Title: strp("T")}, nil
	}
	tb, _, err := CreateBackup(context.Background(), s, "album1", "auto_tag", []TrackRef{{TrackID: "t1", Path: "/x.flac"}}, fakeRead)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Prune(tb.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, tb.ID)); !os.IsNotExist(err) {
		t.Error("expected backup directory removed")
	}

	if err := s.Prune(tb.ID); err != nil {
		t.Errorf("expected idempotent prune on missing dir, got %v", err)
	}
}
