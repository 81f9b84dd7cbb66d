package store

import (
	"context"
	"testing"

	"github.com/musictaggerz/core/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetAlbum(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	artist := "Pink Floyd"
	a := model.Album{ID: "a1", AbsolutePath: "/music/pf/dsotm", Artist: &artist, Status: model.AlbumPending, TrackCount: 10}
	if err := s.UpsertAlbum(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAlbumByPath(ctx, "/music/pf/dsotm")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected album, got nil")
	}
	if got.Artist == nil || *got.Artist != "Pink Floyd" {
		t.Errorf("artist = %v, want Pink Floyd", got.Artist)
	}
	if got.Status != model.AlbumPending {
		t.Errorf("status = %v, want pending", got.Status)
	}
}

func TestUpsertAlbumUpdatesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := model.Album{ID: "a1", AbsolutePath: "/music/x", Status: model.AlbumPending}
	if err := s.UpsertAlbum(ctx, a); err != nil {
		t.Fatal(err)
	}
	a.Status = model.AlbumTagged
	if err := s.UpsertAlbum(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAlbumByID(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.AlbumTagged {
		t.Errorf("status = %v, want tagged", got.Status)
	}
}

func TestGetAlbumByPathMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetAlbumByPath(context.Background(), "/nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestTrackCascadeDeleteOnAlbumDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAlbum(ctx, model.Album{ID: "a1", AbsolutePath: "/m/a", Status: model.AlbumPending}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTrack(ctx, model.Track{ID: "t1", AlbumID: "a1", AbsolutePath: "/m/a/01.flac", DiscNumber: 1, Status: model.TrackPending}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAlbum(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	tracks, err := s.ListTracksByAlbum(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected cascade-deleted tracks, got %d", len(tracks))
	}
}

func TestReplaceMatchCandidatesReplacesWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertAlbum(ctx, model.Album{ID: "a1", AbsolutePath: "/m/a", Status: model.AlbumMatching}); err != nil {
		t.Fatal(err)
	}

	if err := s.ReplaceMatchCandidates(ctx, "a1", []model.MatchCandidate{
		{ID: "c1", AlbumID: "a1", ReleaseID: "r1", Confidence: 90, IsSelected: true},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceMatchCandidates(ctx, "a1", []model.MatchCandidate{
		{ID: "c2", AlbumID: "a1", ReleaseID: "r2", Confidence: 70},
	}); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_candidates WHERE album_id = ?`, "a1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected candidates replaced wholesale (count=1), got %d", count)
	}
}
