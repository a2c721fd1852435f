package upload

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/models"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func TestExtractSingleHTMLFile(t *testing.T) {
	tmp := writeTempFile(t, "game.html", "<html></html>")
	gameDir := filepath.Join(t.TempDir(), "game-dir")

	entry, err := Extract(tmp, "game.html", models.KindHTML, gameDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entry != "index.html" {
		t.Errorf("entry = %q, want index.html", entry)
	}
	if _, err := os.Stat(filepath.Join(gameDir, "index.html")); err != nil {
		t.Errorf("index.html not written: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temporary upload should be removed")
	}
}

func TestExtractZipFindsNestedIndex(t *testing.T) {
	tmp := writeZip(t, map[string]string{
		"readme.txt":           "hi",
		"build/main.js":        "js",
		"build/web/Index.htm":  "<html></html>",
		"build/web/styles.css": "css",
	})
	gameDir := filepath.Join(t.TempDir(), "game-dir")

	entry, err := Extract(tmp, "bundle.zip", models.KindHTML, gameDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entry != "build/web/Index.htm" {
		t.Errorf("entry = %q, want build/web/Index.htm", entry)
	}
}

func TestExtractZipPrefersShallowIndex(t *testing.T) {
	tmp := writeZip(t, map[string]string{
		"index.html":        "<html>root</html>",
		"deep/a/index.html": "<html>deep</html>",
	})
	gameDir := filepath.Join(t.TempDir(), "game-dir")

	entry, err := Extract(tmp, "bundle.zip", models.KindHTML, gameDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entry != "index.html" {
		t.Errorf("entry = %q, want the shallower index.html", entry)
	}
}

func TestExtractZipWithoutIndexFails(t *testing.T) {
	tmp := writeZip(t, map[string]string{"main.js": "js", "a/b.css": "css"})
	gameDir := filepath.Join(t.TempDir(), "game-dir")

	_, err := Extract(tmp, "bundle.zip", models.KindHTML, gameDir)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestExtractZipSlipRejected(t *testing.T) {
	tmp := writeZip(t, map[string]string{"../evil.txt": "pwn"})
	base := t.TempDir()
	gameDir := filepath.Join(base, "game-dir")

	_, err := Extract(tmp, "bundle.zip", models.KindHTML, gameDir)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := os.Stat(filepath.Join(base, "evil.txt")); !os.IsNotExist(err) {
		t.Error("entry escaped the game directory")
	}
}

func TestExtractDownloadKeepsArchive(t *testing.T) {
	tmp := writeTempFile(t, "My Game v2.rar", "rar-bytes")
	gameDir := filepath.Join(t.TempDir(), "game-dir")

	entry, err := Extract(tmp, "My Game v2.rar", models.KindDownload, gameDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entry != "My Game v2.rar" {
		t.Errorf("entry = %q, want the archive base name", entry)
	}
	data, err := os.ReadFile(filepath.Join(gameDir, "My Game v2.rar"))
	if err != nil || string(data) != "rar-bytes" {
		t.Errorf("archive should be stored untouched, got %q err %v", data, err)
	}
}

func TestExtractRejectsWrongExtension(t *testing.T) {
	tests := []struct {
		name string
		file string
		kind models.GameKind
	}{
		{"exe for html", "game.exe", models.KindHTML},
		{"zip for download", "game.zip", models.KindDownload},
		{"html for download", "game.html", models.KindDownload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := writeTempFile(t, tt.file, "data")
			_, err := Extract(tmp, tt.file, tt.kind, filepath.Join(t.TempDir(), "game-dir"))
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			if _, statErr := os.Stat(tmp); !os.IsNotExist(statErr) {
				t.Error("temporary upload should be removed on rejection")
			}
		})
	}
}
