package lyrics

import (
	"context"
	"errors"
	"testing"

	"github.com/musictaggerz/core/internal/lrclib"
)

type fakeProvider struct {
	getResult    *lrclib.Result
	getErr       error
	searchResult *lrclib.Result
	searchErr    error
}

func (f fakeProvider) Get(ctx context.Context, artist, album, title string, durationSec int) (*lrclib.Result, error) {
	return f.getResult, f.getErr
}

func (f fakeProvider) Search(ctx context.Context, artist, album, title string) (*lrclib.Result, error) {
	return f.searchResult, f.searchErr
}

func TestFetchReturnsGetResultWhenAvailable(t *testing.T) {
	c := &Client{provider: fakeProvider{getResult: &lrclib.Result{LRC: "from get"}}}
	res, err := c.Fetch(context.Background(), "Artist", "Album", "Title", 200)
	if err != nil {
		t.Fatal(err)
	}
	if res.LRC != "from get" {
		t.Errorf("got %q, want result from Get", res.LRC)
	}
}

func TestFetchFallsBackToSearchWhenGetFails(t *testing.T) {
	c := &Client{provider: fakeProvider{
		getErr:       errors.New("not found"),
		searchResult: &lrclib.Result{LRC: "from search"},
	}}
	res, err := c.Fetch(context.Background(), "Artist", "Album", "Title", 200)
	if err != nil {
		t.Fatal(err)
	}
	if res.LRC != "from search" {
		t.Errorf("got %q, want result from Search", res.LRC)
	}
}

func TestFetchReturnsErrorWhenBothFail(t *testing.T) {
	c := &Client{provider: fakeProvider{
		getErr:    errors.New("not found"),
		searchErr: errors.New("not found"),
	}}
	_, err := c.Fetch(context.Background(), "Artist", "Album", "Title", 200)
	if err == nil {
		t.Fatal("expected error when both lookups fail")
	}
}
