package moderation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gpx/backend/internal/apperr"
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

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedGame(t *testing.T, db *gorm.DB, slug string, uploaderID uint, v models.Visibility) models.Game {
	t.Helper()
	game := models.Game{
		Title:      slug,
		Slug:       slug,
		AssetDir:   slug + "-cccc3333",
		FileURL:    "/uploads/games/" + slug + "-cccc3333/index.html",
		Kind:       models.KindHTML,
		UploaderID: uploaderID,
		Visibility: v,
	}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}

func seedComment(t *testing.T, db *gorm.DB, gameID, authorID uint) models.Comment {
	t.Helper()
	c := models.Comment{GameID: gameID, AuthorID: authorID, Content: "nice game", Status: models.CommentVisible}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}

func TestApproveGame(t *testing.T) {
	db := newTestDB(t)
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "pending", uploader.ID, models.VisibilityReview)

	approved, err := ApproveGame(db, game.ID)
	if err != nil {
		t.Fatalf("ApproveGame: %v", err)
	}
	if approved.Visibility != models.VisibilityPublic {
		t.Errorf("visibility = %s, want public", approved.Visibility)
	}

	// Approval is only valid from the review state.
	if _, err := ApproveGame(db, game.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("second approve: err = %v, want ErrValidation", err)
	}
}

func TestSuspendAndUnsuspendGame(t *testing.T) {
	db := newTestDB(t)
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "live", uploader.ID, models.VisibilityPublic)

	suspended, err := SuspendGame(db, game.ID, "broken build")
	if err != nil {
		t.Fatalf("SuspendGame: %v", err)
	}
	if suspended.Visibility != models.VisibilitySuspended || suspended.SuspendedReason != "broken build" {
		t.Errorf("game = %+v", suspended)
	}
	if suspended.SuspendedAt == nil {
		t.Error("SuspendedAt not recorded")
	}

	restored, err := UnsuspendGame(db, game.ID)
	if err != nil {
		t.Fatalf("UnsuspendGame: %v", err)
	}
	if restored.Visibility != models.VisibilityPublic || restored.SuspendedReason != "" || restored.SuspendedAt != nil {
		t.Errorf("suspension bookkeeping not cleared: %+v", restored)
	}
}

func TestSuspendRequiresPublic(t *testing.T) {
	db := newTestDB(t)
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "pending", uploader.ID, models.VisibilityReview)

	if _, err := SuspendGame(db, game.ID, "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if _, err := UnsuspendGame(db, game.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unsuspend non-suspended: err = %v, want ErrValidation", err)
	}
	if _, err := ApproveGame(db, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing game: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteGameCascades(t *testing.T) {
	db := newTestDB(t)
	uploader := seedUser(t, db, "dev")
	fan := seedUser(t, db, "fan")
	game := seedGame(t, db, "doomed", uploader.ID, models.VisibilityPublic)

	comment := seedComment(t, db, game.ID, fan.ID)
	if _, err := ReportComment(db, comment.ID, uploader.ID, "spam"); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Review{GameID: game.ID, UserID: fan.ID, Score: 4}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.MonthlyVote{UserID: fan.ID, MonthKey: "2026-08", GameID: game.ID}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&fan).Association("Favorites").Append(&game); err != nil {
		t.Fatal(err)
	}

	uploadsRoot := t.TempDir()
	assetDir := filepath.Join(uploadsRoot, "games", game.AssetDir)
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := DeleteGame(db, &game, uploadsRoot); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}

	counts := map[string]interface{}{
		"games":           &models.Game{},
		"comments":        &models.Comment{},
		"comment reports": &models.CommentReport{},
		"reviews":         &models.Review{},
		"monthly votes":   &models.MonthlyVote{},
	}
	for name, model := range counts {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s left behind: %d rows", name, n)
		}
	}
	var favorites int64
	if err := db.Table("user_favorite_games").Count(&favorites).Error; err != nil {
		t.Fatal(err)
	}
	if favorites != 0 {
		t.Errorf("favorite links left behind: %d", favorites)
	}
	if _, err := os.Stat(assetDir); !os.IsNotExist(err) {
		t.Error("asset directory not removed")
	}
}

func TestReportComment(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "author")
	reporter := seedUser(t, db, "reporter")
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "live", uploader.ID, models.VisibilityPublic)
	comment := seedComment(t, db, game.ID, author.ID)

	reported, err := ReportComment(db, comment.ID, reporter.ID, "offensive")
	if err != nil {
		t.Fatalf("ReportComment: %v", err)
	}
	if reported.ReportsCount != 1 {
		t.Errorf("reports_count = %d, want 1", reported.ReportsCount)
	}
	if reported.Status != models.CommentVisible {
		t.Errorf("reporting must not change status, got %s", reported.Status)
	}

	if _, err := ReportComment(db, comment.ID, reporter.ID, "again"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("duplicate report: err = %v, want ErrValidation", err)
	}
	if _, err := ReportComment(db, comment.ID, author.ID, "self"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self report: err = %v, want ErrValidation", err)
	}

	// Failed attempts must not bump the counter.
	var stored models.Comment
	if err := db.First(&stored, comment.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.ReportsCount != 1 {
		t.Errorf("stored reports_count = %d, want 1", stored.ReportsCount)
	}
}

func TestHideAndRestoreComment(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "author")
	admin := seedUser(t, db, "admin")
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "live", uploader.ID, models.VisibilityPublic)
	comment := seedComment(t, db, game.ID, author.ID)

	hidden, err := HideComment(db, comment.ID, admin.ID, "tos violation")
	if err != nil {
		t.Fatalf("HideComment: %v", err)
	}
	if hidden.Status != models.CommentHidden || hidden.ModerationReason != "tos violation" {
		t.Errorf("comment = %+v", hidden)
	}
	if hidden.ModeratedByID == nil || *hidden.ModeratedByID != admin.ID {
		t.Error("moderator not recorded")
	}

	restored, err := RestoreComment(db, comment.ID, admin.ID)
	if err != nil {
		t.Fatalf("RestoreComment: %v", err)
	}
	if restored.Status != models.CommentVisible || restored.ModerationReason != "" {
		t.Errorf("comment = %+v", restored)
	}
}

func TestCommentStatusTransitionGuards(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "author")
	admin := seedUser(t, db, "admin")
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "live", uploader.ID, models.VisibilityPublic)
	comment := seedComment(t, db, game.ID, author.ID)

	// Restoring a comment that was never hidden is not a valid transition.
	if _, err := RestoreComment(db, comment.ID, admin.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("restore visible: err = %v, want ErrValidation", err)
	}

	if _, err := HideComment(db, comment.ID, admin.ID, "spam"); err != nil {
		t.Fatal(err)
	}
	if _, err := HideComment(db, comment.ID, admin.ID, "again"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("hide hidden: err = %v, want ErrValidation", err)
	}

	// The failed transitions must not have touched the stored state.
	var stored models.Comment
	if err := db.First(&stored, comment.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.CommentHidden || stored.ModerationReason != "spam" {
		t.Errorf("stored = %+v, want hidden with original reason", stored)
	}
}

func TestDeleteComment(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "author")
	reporter := seedUser(t, db, "reporter")
	uploader := seedUser(t, db, "dev")
	game := seedGame(t, db, "live", uploader.ID, models.VisibilityPublic)
	comment := seedComment(t, db, game.ID, author.ID)
	if _, err := ReportComment(db, comment.ID, reporter.ID, "spam"); err != nil {
		t.Fatal(err)
	}

	if err := DeleteComment(db, comment.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}

	var comments, reports int64
	db.Model(&models.Comment{}).Count(&comments)
	db.Model(&models.CommentReport{}).Count(&reports)
	if comments != 0 || reports != 0 {
		t.Errorf("comments=%d reports=%d after delete, want 0/0", comments, reports)
	}

	if err := DeleteComment(db, comment.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}
