package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFilesystemSourceMatchesHintedFilenames(t *testing.T) {
	dir := t.TempDir()
	data := makeJPEG(t, 600, 600)
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("irrelevant"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "random.jpg"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	src := FilesystemSource{}
	cands, err := src.Discover(context.Background(), Request{AlbumDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 matched candidate (cover.jpg), got %d", len(cands))
	}
	if cands[0].Width != 600 || cands[0].Height != 600 {
		t.Errorf("expected decoded dimensions 600x600, got %dx%d", cands[0].Width, cands[0].Height)
	}
}

type stubSource struct {
	name       string
	candidates []Candidate
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Discover(ctx context.Context, req Request) ([]Candidate, error) {
	return s.candidates, nil
}

func TestSelectBestReturnsFirstMeetingMinSize(t *testing.T) {
	sources := []Source{
		stubSource{name: "small", candidates: []Candidate{{Width: 100, Height: 100}}},
		stubSource{name: "big", candidates: []Candidate{{Width: 1000, Height: 1000, SourceName: "big"}}},
	}
	got, err := SelectBest(context.Background(), sources, Request{}, 500)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceName != "big" {
		t.Errorf("expected the first source meeting min size, got %q", got.SourceName)
	}
}

func TestSelectBestNoneQualifyReturnsError(t *testing.T) {
	sources := []Source{stubSource{candidates: []Candidate{{Width: 100, Height: 100}}}}
	_, err := SelectBest(context.Background(), sources, Request{}, 500)
	if err == nil {
		t.Fatal("expected error when no candidate meets minimum size")
	}
}

func TestWriteCoverFilePicksExtensionByMime(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCoverFile(dir, []byte("data"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("expected .png extension, got %s", path)
	}
}

func TestResizeDownToShrinksOversizedImage(t *testing.T) {
	data := makeJPEG(t, 2000, 1000)
	resized, err := ResizeDownTo(data, 500)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(resized))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width > 500 || cfg.Height > 500 {
		t.Errorf("expected resized within 500x500, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestResizeDownToLeavesSmallImageUnchanged(t *testing.T) {
	data := makeJPEG(t, 300, 300)
	resized, err := ResizeDownTo(data, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, resized) {
		t.Error("expected image within bounds to be returned unchanged")
	}
}
