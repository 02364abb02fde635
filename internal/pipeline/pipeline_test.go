package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imagefit/internal/codec"
	"imagefit/internal/testutil"
)

func probedSource(t *testing.T, path string) Source {
	t.Helper()
	w, h, f, err := codec.Probe(path)
	if err != nil {
		t.Fatalf("probe %s: %v", path, err)
	}
	return Source{Path: path, Width: w, Height: h, Format: f}
}

func TestSanitizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/data/photos/beach.jpg", "/data/photos/beach.jpg"},
		{"C:/photos/b each.jpg", "C:/photos/beach.jpg"},
		{"out put(1).png", "output1.png"},
		{"trip_2026-01/img.gif", "trip_2026-01/img.gif"},
	}
	for _, c := range cases {
		if got := SanitizePath(c.in); got != c.want {
			t.Fatalf("sanitize %q: expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestProcess_ScalesDown(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "src.jpg", 2000, 1000))
	dest := filepath.Join(t.TempDir(), "out.jpg")

	written, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, dest, 0)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if written != dest {
		t.Fatalf("expected destination %s, got %s", dest, written)
	}
	w, h := testutil.ImageSize(t, dest)
	if w != 100 || h != 50 {
		t.Fatalf("expected 100x50 output, got %dx%d", w, h)
	}
}

func TestProcess_ForcedFillCrops(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "src.png", 1000, 1000))
	dest := filepath.Join(t.TempDir(), "out.png")

	if _, err := Process(src, Box{MaxWidth: 200, MaxHeight: 100, Force: true}, dest, 0); err != nil {
		t.Fatalf("process: %v", err)
	}
	w, h := testutil.ImageSize(t, dest)
	if w != 200 || h != 100 {
		t.Fatalf("expected output to fill 200x100, got %dx%d", w, h)
	}
}

func TestProcess_SmallSourceCopied(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "small.png", 50, 50))
	dest := filepath.Join(t.TempDir(), "copy.png")

	if _, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, dest, 0); err != nil {
		t.Fatalf("process: %v", err)
	}

	want, err := os.ReadFile(src.Path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(want) != string(got) {
		t.Fatal("expected a byte-identical copy for a source already inside the box")
	}
}

func TestProcess_ForcedEnlarge(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "small.gif", 50, 50))
	dest := filepath.Join(t.TempDir(), "big.gif")

	if _, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100, Force: true}, dest, 0); err != nil {
		t.Fatalf("process: %v", err)
	}
	w, h := testutil.ImageSize(t, dest)
	if w != 100 || h != 100 {
		t.Fatalf("expected forced 100x100, got %dx%d", w, h)
	}
}

func TestProcess_CrossFormatFromPNG(t *testing.T) {
	// png into jpeg is allowed; only jpeg sources are locked to jpeg.
	src := probedSource(t, testutil.TempImage(t, "src.png", 400, 300))
	dest := filepath.Join(t.TempDir(), "out.jpg")

	if _, err := Process(src, Box{MaxWidth: 200, MaxHeight: 200}, dest, 80); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f := codec.FromPath(dest); f != codec.JPEG {
		t.Fatalf("expected jpeg destination, got %s", f)
	}
	if _, _, f, err := codec.Probe(dest); err != nil || f != codec.JPEG {
		t.Fatalf("expected decodable jpeg output, got %s err %v", f, err)
	}
}

func TestProcess_JPEGSourceRefusesOtherFormats(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "src.jpg", 400, 300))
	dest := filepath.Join(t.TempDir(), "out.png")

	_, err := Process(src, Box{MaxWidth: 200, MaxHeight: 200}, dest, 0)
	if !errors.Is(err, ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("no file should be written on a format mismatch")
	}
}

func TestProcess_InvalidDestination(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "src.png", 400, 300))

	for _, dest := range []string{"", "out.bmp", "out", "???"} {
		_, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, dest, 0)
		if !errors.Is(err, ErrInvalidDestination) {
			t.Fatalf("dest %q: expected ErrInvalidDestination, got %v", dest, err)
		}
	}
}

func TestProcess_SanitizesDestination(t *testing.T) {
	src := probedSource(t, testutil.TempImage(t, "src.png", 400, 300))
	dir := t.TempDir()
	dirty := filepath.Join(dir, "ou t put.png")

	written, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, dirty, 0)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := filepath.Join(dir, "output.png")
	if written != want {
		t.Fatalf("expected sanitized destination %s, got %s", want, written)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected output at sanitized path: %v", err)
	}
}

func TestProcess_CopyFailure(t *testing.T) {
	// A source that fits the box takes the byte-copy path; losing the
	// file between probe and copy must surface as a copy error, not an
	// encoding one.
	src := probedSource(t, testutil.TempImage(t, "small.png", 50, 50))
	if err := os.Remove(src.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, filepath.Join(t.TempDir(), "o.png"), 0)
	if !errors.Is(err, ErrCopy) {
		t.Fatalf("expected ErrCopy, got %v", err)
	}
	if errors.Is(err, ErrEncode) {
		t.Fatal("copy failure must not be reported as an encode failure")
	}
}

func TestProcess_ZeroSourceDimensions(t *testing.T) {
	src := Source{Path: "whatever.png", Format: codec.PNG}
	_, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, filepath.Join(t.TempDir(), "o.png"), 0)
	if !errors.Is(err, ErrInvalidSourceDimensions) {
		t.Fatalf("expected ErrInvalidSourceDimensions, got %v", err)
	}
}

func TestProcess_CanvasLimit(t *testing.T) {
	// A forced tiny box on an extremely elongated source would demand a
	// canvas beyond MaxDimension.
	src := Source{Path: "elongated.png", Width: 100000, Height: 100, Format: codec.PNG}
	_, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100, Force: true}, filepath.Join(t.TempDir(), "o.png"), 0)
	if !errors.Is(err, ErrCanvas) {
		t.Fatalf("expected ErrCanvas, got %v", err)
	}
}

func TestProcess_DecodeFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := Source{Path: bad, Width: 400, Height: 300, Format: codec.PNG}
	_, err := Process(src, Box{MaxWidth: 100, MaxHeight: 100}, filepath.Join(dir, "o.png"), 0)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
