package coverartarchive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withTestServer(t *testing.T, images []imageEntry) (*Client, *httptest.Server) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release/rel1":
			resolved := make([]imageEntry, len(images))
			for i, img := range images {
				resolved[i] = imageEntry{Front: img.Front, Image: srv.URL + img.Image}
			}
			json.NewEncoder(w).Encode(releaseResponse{Images: resolved})
		case "/front.jpg":
			w.Write([]byte("frontbytes"))
		case "/back.jpg":
			w.Write([]byte("backbytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	baseURL = srv.URL
	c := New("test-agent")
	c.rl.MinInterval = 0
	t.Cleanup(srv.Close)
	return c, srv
}

func TestFrontImagePicksFrontEntry(t *testing.T) {
	c, _ := withTestServer(t, []imageEntry{
		{Front: false, Image: "/back.jpg"},
		{Front: true, Image: "/front.jpg"},
	})

	data, err := c.FrontImage(context.Background(), "rel1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "frontbytes" {
		t.Errorf("got %q, want frontbytes", data)
	}
}

func TestFrontImageFallsBackToFirstWhenNoneMarkedFront(t *testing.T) {
	c, _ := withTestServer(t, []imageEntry{
		{Front: false, Image: "/back.jpg"},
	})

	data, err := c.FrontImage(context.Background(), "rel1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "backbytes" {
		t.Errorf("got %q, want backbytes", data)
	}
}

func TestFrontImageNoImagesReturnsNotFound(t *testing.T) {
	c, _ := withTestServer(t, nil)

	_, err := c.FrontImage(context.Background(), "rel1")
	if err == nil {
		t.Fatal("expected error for release with no images")
	}
}
