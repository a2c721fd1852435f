package upload

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/models"
)

var (
	htmlExt  = regexp.MustCompile(`(?i)\.html?$`)
	zipExt   = regexp.MustCompile(`(?i)\.zip$`)
	rarExt   = regexp.MustCompile(`(?i)\.rar$`)
	indexDoc = regexp.MustCompile(`(?i)^index\.html?$`)
)

// Extract materializes an uploaded game bundle under gameDir and returns the
// entry path relative to gameDir (forward slashes).
//
//   - kind=html, *.html/*.htm  → stored as index.html
//   - kind=html, *.zip         → extracted; breadth-first scan for index.html
//   - kind=download, *.rar     → stored under its base name, never extracted
//
// Any other extension fails with a validation error before touching gameDir.
// The temporary upload at tmpPath is removed in every case.
func Extract(tmpPath, originalName string, kind models.GameKind, gameDir string) (entry string, err error) {
	defer os.Remove(tmpPath)

	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create game dir: %v", apperr.ErrStorage, err)
	}

	switch {
	case kind == models.KindHTML && htmlExt.MatchString(originalName):
		if err := moveFile(tmpPath, filepath.Join(gameDir, "index.html")); err != nil {
			return "", err
		}
		return "index.html", nil

	case kind == models.KindHTML && zipExt.MatchString(originalName):
		if err := extractZip(tmpPath, gameDir); err != nil {
			return "", err
		}
		rel, found, err := findIndexHTML(gameDir)
		if err != nil {
			return "", fmt.Errorf("%w: scan for index: %v", apperr.ErrStorage, err)
		}
		if !found {
			return "", fmt.Errorf("%w: no index.html in archive", apperr.ErrValidation)
		}
		return rel, nil

	case kind == models.KindDownload && rarExt.MatchString(originalName):
		base := filepath.Base(originalName)
		if err := moveFile(tmpPath, filepath.Join(gameDir, base)); err != nil {
			return "", err
		}
		return base, nil

	case kind == models.KindHTML:
		return "", fmt.Errorf("%w: html games accept only .html or .zip", apperr.ErrValidation)

	default:
		return "", fmt.Errorf("%w: downloadable games accept only .rar", apperr.ErrValidation)
	}
}

// extractZip unpacks every entry of the archive into destDir, overwriting
// existing files. Entries whose cleaned path would escape destDir fail the
// whole extraction.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: unreadable zip archive", apperr.ErrValidation)
	}
	defer r.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, f := range r.File {
		dest := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(dest, root) {
			return fmt.Errorf("%w: archive entry escapes game directory: %s", apperr.ErrValidation, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
			}
			continue
		}
		if err := writeZipEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: corrupt zip entry %s", apperr.ErrValidation, f.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// findIndexHTML does a breadth-first scan of rootDir for a file named
// index.html or index.htm (case-insensitive) and returns its path relative
// to rootDir with forward slashes. Shallower matches win.
func findIndexHTML(rootDir string) (string, bool, error) {
	queue := []string{""}
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(filepath.Join(rootDir, rel))
		if err != nil {
			return "", false, err
		}
		for _, e := range entries {
			relPath := filepath.Join(rel, e.Name())
			if e.IsDir() {
				queue = append(queue, relPath)
			} else if indexDoc.MatchString(e.Name()) {
				return filepath.ToSlash(relPath), true, nil
			}
		}
	}
	return "", false, nil
}

// moveFile renames src to dest, falling back to copy+remove across devices.
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	os.Remove(src)
	return nil
}
