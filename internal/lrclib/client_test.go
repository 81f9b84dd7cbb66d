package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetParsesSyncedLyrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"syncedLyrics":"[00:01.00]hello","plainLyrics":"hello"}`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	c := New("test-agent")
	c.rl.MinInterval = 0

	res, err := c.Get(context.Background(), "Artist", "Album", "Title", 180)
	if err != nil {
		t.Fatal(err)
	}
	if res.LRC == "" {
		t.Error("expected synced lyrics")
	}
}

func TestSearchPrefersSyncedOverPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"plainLyrics":"plain only"}, {"syncedLyrics":"[00:01.00]synced","plainLyrics":"also plain"}]`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	c := New("test-agent")
	c.rl.MinInterval = 0

	res, err := c.Search(context.Background(), "Artist", "Album", "Title")
	if err != nil {
		t.Fatal(err)
	}
	if res.LRC == "" {
		t.Error("expected search to prefer the synced-lyrics result")
	}
}

func TestSearchFallsBackToPlainWhenNoSyncedAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"plainLyrics":"only plain here"}]`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	c := New("test-agent")
	c.rl.MinInterval = 0

	res, err := c.Search(context.Background(), "Artist", "Album", "Title")
	if err != nil {
		t.Fatal(err)
	}
	if res.Plain != "only plain here" {
		t.Errorf("got %q, want plain fallback", res.Plain)
	}
}

func TestSearchEmptyResultsReturnsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	c := New("test-agent")
	c.rl.MinInterval = 0

	_, err := c.Search(context.Background(), "Artist", "Album", "Title")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}
