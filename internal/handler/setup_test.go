package handler

import (
	"io"
	"net/http/httptest"
	"testing"

	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTest wires the package globals the handlers read (database.DB,
// config.AppConfig) to test doubles and returns the test database.
func setupTest(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	database.DB = db

	config.AppConfig = &config.Config{
		DatabaseURL: "test",
		JWTSecret:   "test-secret",
		Port:        "8080",
		UploadsRoot: t.TempDir(),
		MaxUploadMB: 10,
		ClientURL:   "http://localhost:5173",
	}
	return db
}

// testContext builds a gin context around an httptest request/recorder pair.
func testContext(t *testing.T, method, target string, body io.Reader) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, body)
	return c, w
}

func seedTestUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	u := models.User{Username: username, Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedTestGame(t *testing.T, db *gorm.DB, slug string, uploaderID uint, v models.Visibility) models.Game {
	t.Helper()
	game := models.Game{
		Title:      slug,
		Slug:       slug,
		AssetDir:   slug + "-ffff7777",
		FileURL:    "/uploads/games/" + slug + "-ffff7777/index.html",
		Kind:       models.KindHTML,
		UploaderID: uploaderID,
		Visibility: v,
	}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}
