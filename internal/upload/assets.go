package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gpx/backend/internal/apperr"

	"github.com/disintegration/imaging"
)

// Bounding boxes for normalized images. Smaller images are kept as-is;
// larger ones are scaled down to fit, preserving aspect ratio.
const (
	coverMaxW, coverMaxH   = 1200, 675
	screenMaxW, screenMaxH = 1600, 900
	avatarMaxW, avatarMaxH = 512, 512
	bannerMaxW, bannerMaxH = 1600, 400

	// MaxScreens caps the number of screenshots per game.
	MaxScreens = 5

	jpegQuality = 85
)

var screenFile = regexp.MustCompile(`(?i)^screen-\d+\.(png|jpe?g|webp)$`)

// GameURL composes the root-relative URL for a file inside a game's asset
// directory. The /uploads/games/{dir}/{name} layout is a stable contract the
// client uses to resolve playable and visual assets.
func GameURL(assetDir, name string) string {
	return "/uploads/games/" + assetDir + "/" + filepath.ToSlash(name)
}

// SaveCover normalizes the cover image into gameDir as cover.jpg and returns
// its URL.
func SaveCover(r io.Reader, gameDir, assetDir string) (string, error) {
	if err := saveJPEG(r, filepath.Join(gameDir, "cover.jpg"), coverMaxW, coverMaxH); err != nil {
		return "", err
	}
	return GameURL(assetDir, "cover.jpg"), nil
}

// ReplaceScreens deletes any previously stored screen-N.* files in gameDir
// and writes the new set as screen-1.jpg..screen-5.jpg. The new set fully
// replaces the old one.
func ReplaceScreens(readers []io.Reader, gameDir, assetDir string) ([]string, error) {
	if err := removeOldScreens(gameDir); err != nil {
		return nil, err
	}

	if len(readers) > MaxScreens {
		readers = readers[:MaxScreens]
	}
	urls := make([]string, 0, len(readers))
	for i, r := range readers {
		name := fmt.Sprintf("screen-%d.jpg", i+1)
		if err := saveJPEG(r, filepath.Join(gameDir, name), screenMaxW, screenMaxH); err != nil {
			return nil, err
		}
		urls = append(urls, GameURL(assetDir, name))
	}
	return urls, nil
}

// SaveAvatar normalizes a profile avatar under {root}/avatars and returns
// its URL.
func SaveAvatar(r io.Reader, uploadsRoot string, userID uint) (string, error) {
	return saveUserImage(r, uploadsRoot, "avatars", userID, avatarMaxW, avatarMaxH)
}

// SaveBanner normalizes a profile banner under {root}/banners and returns
// its URL.
func SaveBanner(r io.Reader, uploadsRoot string, userID uint) (string, error) {
	return saveUserImage(r, uploadsRoot, "banners", userID, bannerMaxW, bannerMaxH)
}

func saveUserImage(r io.Reader, uploadsRoot, sub string, userID uint, maxW, maxH int) (string, error) {
	name := fmt.Sprintf("%d_%d.jpg", userID, time.Now().UnixMilli())
	if err := saveJPEG(r, filepath.Join(uploadsRoot, sub, name), maxW, maxH); err != nil {
		return "", err
	}
	return "/uploads/" + sub + "/" + name, nil
}

func removeOldScreens(gameDir string) error {
	entries, err := os.ReadDir(gameDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	for _, e := range entries {
		if !e.IsDir() && screenFile.MatchString(e.Name()) {
			if err := os.Remove(filepath.Join(gameDir, e.Name())); err != nil {
				return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
			}
		}
	}
	return nil
}

// saveJPEG decodes the image, scales it down to fit the bounding box and
// re-encodes it as JPEG at dest.
func saveJPEG(r io.Reader, dest string, maxW, maxH int) error {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: unreadable image", apperr.ErrValidation)
	}
	img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if err := imaging.Save(img, dest, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}
