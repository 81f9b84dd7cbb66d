package scanner

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/musictaggerz/core/internal/audiofolder"
	"github.com/musictaggerz/core/internal/store"
	"github.com/musictaggerz/core/internal/tagcodec"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string { return &s }

func fakeReadTags(path string) (tagcodec.Record, error) {
	return tagcodec.Record{Title: strp(filepath.Base(path)), Artist: strp("Artist"), Album: strp("Album")}, nil
}

func writeFlac(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("fake flac"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectoryInsertsNewFlatAlbum(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist - Album")
	os.MkdirAll(albumDir, 0o755)
	writeFlac(t, filepath.Join(albumDir, "01.flac"))
	writeFlac(t, filepath.Join(albumDir, "02.flac"))

	var enqueued []string
	s := New(openTestStore(t), nil, func(p string) { enqueued = append(enqueued, p) })
	s.ReadTags = fakeReadTags

	if err := s.ScanDirectory(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}

	album, err := s.Store.GetAlbumByPath(context.Background(), albumDir)
	if err != nil {
		t.Fatal(err)
	}
	if album == nil {
		t.Fatal("expected album inserted")
	}
	if album.TrackCount != 2 {
		t.Errorf("track count = %d, want 2", album.TrackCount)
	}
	if len(enqueued) != 1 {
		t.Errorf("expected album auto-queued, got %v", enqueued)
	}
}

func TestScanDirectoryIncrementalAddsAndRemovesTracks(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist - Album")
	os.MkdirAll(albumDir, 0o755)
	writeFlac(t, filepath.Join(albumDir, "01.flac"))

	st := openTestStore(t)
	var enqueueCount int
	s := New(st, nil, func(p string) { enqueueCount++ })
	s.ReadTags = fakeReadTags

	if err := s.ScanDirectory(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}
	if enqueueCount != 1 {
		t.Fatalf("expected 1 enqueue after initial scan, got %d", enqueueCount)
	}

	os.Remove(filepath.Join(albumDir, "01.flac"))
	writeFlac(t, filepath.Join(albumDir, "02.flac"))

	if err := s.ScanDirectory(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}

	album, err := st.GetAlbumByPath(context.Background(), albumDir)
	if err != nil {
		t.Fatal(err)
	}
	tracks, err := st.ListTracksByAlbum(context.Background(), album.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || filepath.Base(tracks[0].AbsolutePath) != "02.flac" {
		t.Fatalf("expected only 02.flac to remain, got %+v", tracks)
	}
	if enqueueCount != 2 {
		t.Errorf("expected re-enqueue on change, got enqueueCount=%d", enqueueCount)
	}
}

func TestScanDirectoryForceReinserts(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist - Album")
	os.MkdirAll(albumDir, 0o755)
	writeFlac(t, filepath.Join(albumDir, "01.flac"))

	st := openTestStore(t)
	s := New(st, nil, func(string) {})
	s.ReadTags = fakeReadTags

	if err := s.ScanDirectory(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}
	firstAlbum, _ := st.GetAlbumByPath(context.Background(), albumDir)

	if err := s.ScanDirectory(context.Background(), root, true); err != nil {
		t.Fatal(err)
	}
	secondAlbum, _ := st.GetAlbumByPath(context.Background(), albumDir)

	if firstAlbum.ID == secondAlbum.ID {
		t.Error("expected a new album ID after forced re-insert")
	}
}

func TestScanDirectoryRecursesArtistAlbumLayout(t *testing.T) {
	root := t.TempDir()
	artistDir := filepath.Join(root, "Artist")
	albumDir := filepath.Join(artistDir, "Album")
	os.MkdirAll(albumDir, 0o755)
	writeFlac(t, filepath.Join(albumDir, "01.flac"))

	st := openTestStore(t)
	s := New(st, nil, func(string) {})
	s.ReadTags = fakeReadTags

	if err := s.ScanDirectory(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}

	album, err := st.GetAlbumByPath(context.Background(), albumDir)
	if err != nil {
		t.Fatal(err)
	}
	if album == nil {
		t.Fatal("expected nested artist/album folder discovered and inserted")
	}
}

func TestDiscoverAlbumFoldersDetectsMultiDisc(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Box Set")
	os.MkdirAll(filepath.Join(albumDir, "CD1"), 0o755)
	os.MkdirAll(filepath.Join(albumDir, "CD2"), 0o755)
	writeFlac(t, filepath.Join(albumDir, "CD1", "01.flac"))
	writeFlac(t, filepath.Join(albumDir, "CD2", "01.flac"))

	patterns := []audiofolder.DiscPattern{{Regexp: regexp.MustCompile(`^CD(\d+)$`)}}
	folders, err := discoverAlbumFolders(root, patterns)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0] != albumDir {
		t.Fatalf("expected multi-disc parent folder detected, got %v", folders)
	}
}
