package acoustid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLookupNoAPIKeyReturnsNilWithoutError(t *testing.T) {
	c := New("test-agent", "")
	matches, err := c.Lookup(context.Background(), "deadbeef", 120)
	if err != nil {
		t.Fatal(err)
	}
	if matches != nil {
		t.Errorf("expected nil matches with no api key, got %v", matches)
	}
}

func TestLookupParsesReleaseGroupsIntoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","results":[{"score":0.95,"releases":[{"releasegroups":[{"releases":[{"id":"rel-1"},{"id":"rel-2"}]}]}]}]}`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	c := New("test-agent", "key123")
	c.rl.MinInterval = 0

	matches, err := c.Lookup(context.Background(), "deadbeef", 120)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", matches[0].Confidence)
	}
}

func TestGeneratorFingerprintIsStablePerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("some audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := Generator{}
	fp1, _, err := g.Fingerprint(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	fp2, _, err := g.Fingerprint(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Errorf("expected stable fingerprint, got %q vs %q", fp1, fp2)
	}
	if fp1 == "" {
		t.Error("expected non-empty fingerprint")
	}
}

func TestGeneratorFingerprintDiffersAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.flac")
	pathB := filepath.Join(dir, "b.flac")
	os.WriteFile(pathA, []byte("audio bytes one"), 0o644)
	os.WriteFile(pathB, []byte("audio bytes two, longer content"), 0o644)

	g := Generator{}
	fpA, _, err := g.Fingerprint(context.Background(), pathA)
	if err != nil {
		t.Fatal(err)
	}
	fpB, _, err := g.Fingerprint(context.Background(), pathB)
	if err != nil {
		t.Fatal(err)
	}
	if fpA == fpB {
		t.Error("expected different fingerprints for different file contents")
	}
}
