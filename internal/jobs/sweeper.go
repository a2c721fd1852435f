// Package jobs runs background maintenance on a cron schedule. The only job
// today is the orphan-asset sweep: a failed game creation can leave an asset
// directory behind (files are written before the database row), and the
// sweep reconciles those leftovers.
package jobs

import (
	"os"
	"path/filepath"
	"time"

	"gpx/backend/internal/models"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// orphanMinAge keeps the sweep away from uploads still in flight.
const orphanMinAge = 24 * time.Hour

// Start schedules the daily sweep and returns the running cron so main can
// stop it on shutdown.
func Start(db *gorm.DB, uploadsRoot string) *cron.Cron {
	c := cron.New()
	c.AddFunc("30 4 * * *", func() {
		removed, err := SweepOrphanAssets(db, uploadsRoot, orphanMinAge)
		if err != nil {
			log.WithError(err).Error("orphan asset sweep failed")
			return
		}
		if removed > 0 {
			log.WithField("removed", removed).Info("orphan asset sweep complete")
		}
	})
	c.Start()
	log.Info("job scheduler started")
	return c
}

// SweepOrphanAssets deletes directories under {root}/games that are older
// than minAge and not referenced by any game's AssetDir. Returns how many
// directories were removed.
func SweepOrphanAssets(db *gorm.DB, uploadsRoot string, minAge time.Duration) (int, error) {
	gamesDir := filepath.Join(uploadsRoot, "games")
	entries, err := os.ReadDir(gamesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var known []string
	if err := db.Model(&models.Game{}).Pluck("asset_dir", &known).Error; err != nil {
		return 0, err
	}
	referenced := make(map[string]bool, len(known))
	for _, d := range known {
		referenced[d] = true
	}

	cutoff := time.Now().Add(-minAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || referenced[e.Name()] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(gamesDir, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("failed to remove orphan asset dir")
			continue
		}
		removed++
	}
	return removed, nil
}
