package upload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpx/backend/internal/apperr"
)

func pngImage(t *testing.T, w, h int) io.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &buf
}

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestSaveCoverScalesDown(t *testing.T) {
	gameDir := t.TempDir()

	url, err := SaveCover(pngImage(t, 2400, 1350), gameDir, "space-invaders-abc12345")
	if err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	if url != "/uploads/games/space-invaders-abc12345/cover.jpg" {
		t.Errorf("url = %q", url)
	}

	bounds := decodeJPEG(t, filepath.Join(gameDir, "cover.jpg")).Bounds()
	if bounds.Dx() > 1200 || bounds.Dy() > 675 {
		t.Errorf("cover bounds = %dx%d, want within 1200x675", bounds.Dx(), bounds.Dy())
	}
}

func TestSaveCoverKeepsSmallImages(t *testing.T) {
	gameDir := t.TempDir()

	if _, err := SaveCover(pngImage(t, 640, 360), gameDir, "d"); err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	bounds := decodeJPEG(t, filepath.Join(gameDir, "cover.jpg")).Bounds()
	if bounds.Dx() != 640 || bounds.Dy() != 360 {
		t.Errorf("small cover resized to %dx%d, want 640x360", bounds.Dx(), bounds.Dy())
	}
}

func TestSaveCoverRejectsGarbage(t *testing.T) {
	_, err := SaveCover(strings.NewReader("not an image"), t.TempDir(), "d")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestReplaceScreensRemovesOldSet(t *testing.T) {
	gameDir := t.TempDir()
	for _, stale := range []string{"screen-1.png", "screen-4.webp", "SCREEN-2.JPG"} {
		if err := os.WriteFile(filepath.Join(gameDir, stale), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files survive the replacement.
	if err := os.WriteFile(filepath.Join(gameDir, "index.html"), []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReplaceScreens([]io.Reader{pngImage(t, 100, 100), pngImage(t, 100, 100)}, gameDir, "dir")
	if err != nil {
		t.Fatalf("ReplaceScreens: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("got %d urls, want 2", len(urls))
	}
	if urls[0] != "/uploads/games/dir/screen-1.jpg" || urls[1] != "/uploads/games/dir/screen-2.jpg" {
		t.Errorf("urls = %v", urls)
	}

	entries, err := os.ReadDir(gameDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := map[string]bool{"index.html": true, "screen-1.jpg": true, "screen-2.jpg": true}
	if len(names) != len(want) {
		t.Fatalf("dir contents = %v, want exactly %v", names, want)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected leftover %q", n)
		}
	}
}

func TestReplaceScreensCapsAtMax(t *testing.T) {
	readers := make([]io.Reader, MaxScreens+3)
	for i := range readers {
		readers[i] = pngImage(t, 50, 50)
	}

	urls, err := ReplaceScreens(readers, t.TempDir(), "dir")
	if err != nil {
		t.Fatalf("ReplaceScreens: %v", err)
	}
	if len(urls) != MaxScreens {
		t.Errorf("got %d screens, want %d", len(urls), MaxScreens)
	}
}

func TestSaveAvatarURLShape(t *testing.T) {
	root := t.TempDir()

	url, err := SaveAvatar(pngImage(t, 1024, 1024), root, 42)
	if err != nil {
		t.Fatalf("SaveAvatar: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/avatars/42_") || !strings.HasSuffix(url, ".jpg") {
		t.Errorf("url = %q", url)
	}

	name := strings.TrimPrefix(url, "/uploads/avatars/")
	bounds := decodeJPEG(t, filepath.Join(root, "avatars", name)).Bounds()
	if bounds.Dx() > 512 || bounds.Dy() > 512 {
		t.Errorf("avatar bounds = %dx%d, want within 512x512", bounds.Dx(), bounds.Dy())
	}
}
