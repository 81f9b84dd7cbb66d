package tagcodec

import "testing"

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		".flac": true, ".FLAC": true, ".mp3": true, ".m4a": true,
		".mp4": true, ".ogg": true, ".opus": true, ".wav": false,
		".txt": false, "": false,
	}
	for ext, want := range cases {
		if got := Supported(ext); got != want {
			t.Errorf("Supported(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestFirstIntPtr(t *testing.T) {
	tags := map[string][]string{"TRACKNUMBER": {"7"}, "BAD": {"nope"}}
	if v := firstIntPtr(tags, "TRACKNUMBER"); v == nil || *v != 7 {
		t.Fatalf("expected 7, got %v", v)
	}
	if v := firstIntPtr(tags, "BAD"); v != nil {
		t.Fatalf("expected nil for unparseable int, got %v", v)
	}
	if v := firstIntPtr(tags, "MISSING"); v != nil {
		t.Fatalf("expected nil for missing key, got %v", v)
	}
}

func TestFirstFloatPtr(t *testing.T) {
	tags := map[string][]string{"REPLAYGAIN_TRACK_GAIN": {"-6.50 dB"}}
	v := firstFloatPtr(tags, "REPLAYGAIN_TRACK_GAIN")
	if v == nil || *v != -6.5 {
		t.Fatalf("expected -6.5, got %v", v)
	}
}

func TestSniffImageMime(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0}
	jpg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if sniffImageMime(png) != "image/png" {
		t.Error("expected png detection")
	}
	if sniffImageMime(jpg) != "image/jpeg" {
		t.Error("expected jpeg detection")
	}
}

func TestWriteRejectsUnsupportedExtension(t *testing.T) {
	err := Write("/tmp/nonexistent.wav", Record{})
	var cerr *Error
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrUnsupportedFormat {
		t.Fatalf("expected ErrUnsupportedFormat, got %#v (cerr=%v)", err, cerr)
	}
}
