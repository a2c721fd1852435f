package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gpx/backend/internal/database"
	"gpx/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// A fresh pool connection would see an empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func makeGameDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, "games", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSweepOrphanAssets(t *testing.T) {
	db := newTestDB(t)
	root := t.TempDir()

	user := models.User{Username: "dev"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	game := models.Game{
		Title: "kept", Slug: "kept", AssetDir: "kept-dddd4444",
		FileURL: "/uploads/games/kept-dddd4444/index.html",
		Kind:    models.KindHTML, UploaderID: user.ID, Visibility: models.VisibilityPublic,
	}
	if err := db.Create(&game).Error; err != nil {
		t.Fatal(err)
	}

	referenced := makeGameDir(t, root, "kept-dddd4444", 48*time.Hour)
	oldOrphan := makeGameDir(t, root, "orphan-eeee5555", 48*time.Hour)
	freshOrphan := makeGameDir(t, root, "orphan-ffff6666", time.Minute)

	removed, err := SweepOrphanAssets(db, root, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepOrphanAssets: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(referenced); err != nil {
		t.Error("referenced directory must survive")
	}
	if _, err := os.Stat(oldOrphan); !os.IsNotExist(err) {
		t.Error("old orphan directory should be removed")
	}
	if _, err := os.Stat(freshOrphan); err != nil {
		t.Error("fresh orphan must survive the min-age guard")
	}
}

func TestSweepMissingRootIsNoop(t *testing.T) {
	db := newTestDB(t)

	removed, err := SweepOrphanAssets(db, filepath.Join(t.TempDir(), "nope"), time.Hour)
	if err != nil {
		t.Fatalf("SweepOrphanAssets: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
