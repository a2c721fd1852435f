package ratings

import (
	"testing"

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

func seedGame(t *testing.T, db *gorm.DB, slug string) models.Game {
	t.Helper()
	user := models.User{Username: "uploader-" + slug}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	game := models.Game{
		Title:      slug,
		Slug:       slug,
		AssetDir:   slug + "-aaaa1111",
		FileURL:    "/uploads/games/" + slug + "-aaaa1111/index.html",
		Kind:       models.KindHTML,
		UploaderID: user.ID,
		Visibility: models.VisibilityPublic,
	}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}

func addReview(t *testing.T, db *gorm.DB, gameID, userID uint, score int) {
	t.Helper()
	r := models.Review{GameID: gameID, UserID: userID, Score: score}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed review: %v", err)
	}
}

func TestRecomputeNoReviews(t *testing.T) {
	db := newTestDB(t)
	game := seedGame(t, db, "empty")

	summary, err := Recompute(db, game.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if summary.Count != 0 || summary.Avg != 0 {
		t.Errorf("summary = %+v, want zero count and avg", summary)
	}
	if len(summary.Dist) != 5 {
		t.Fatalf("dist length = %d, want 5", len(summary.Dist))
	}
	for i, n := range summary.Dist {
		if n != 0 {
			t.Errorf("dist[%d] = %d, want 0", i, n)
		}
	}
}

func TestRecomputeHistogram(t *testing.T) {
	db := newTestDB(t)
	game := seedGame(t, db, "histogram")
	for i, score := range []int{5, 5, 4, 3, 1} {
		addReview(t, db, game.ID, uint(100+i), score)
	}

	summary, err := Recompute(db, game.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if summary.Count != 5 {
		t.Errorf("count = %d, want 5", summary.Count)
	}
	if summary.Avg != 3.6 {
		t.Errorf("avg = %v, want 3.6", summary.Avg)
	}
	wantDist := []int64{1, 0, 1, 1, 2}
	for i := range wantDist {
		if summary.Dist[i] != wantDist[i] {
			t.Errorf("dist[%d] = %d, want %d", i, summary.Dist[i], wantDist[i])
		}
	}

	// Derived fields land on the game row.
	var stored models.Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.RatingsCount != 5 || stored.RatingsAvg != 3.6 {
		t.Errorf("stored count=%d avg=%v", stored.RatingsCount, stored.RatingsAvg)
	}
	if len(stored.RatingsDist) != 5 || stored.RatingsDist[4] != 2 {
		t.Errorf("stored dist = %v", stored.RatingsDist)
	}
}

func TestRecomputeRoundsToTwoDecimals(t *testing.T) {
	db := newTestDB(t)
	game := seedGame(t, db, "rounding")
	for i, score := range []int{5, 5, 4} {
		addReview(t, db, game.ID, uint(200+i), score)
	}

	summary, err := Recompute(db, game.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if summary.Avg != 4.67 {
		t.Errorf("avg = %v, want 4.67", summary.Avg)
	}
}

func TestRecomputeOverwritesPreviousSummary(t *testing.T) {
	db := newTestDB(t)
	game := seedGame(t, db, "overwrite")
	addReview(t, db, game.ID, 300, 2)
	if _, err := Recompute(db, game.ID); err != nil {
		t.Fatal(err)
	}

	// The reviewer changes their mind.
	err := db.Model(&models.Review{}).
		Where("game_id = ? AND user_id = ?", game.ID, 300).
		Update("score", 5).Error
	if err != nil {
		t.Fatal(err)
	}

	summary, err := Recompute(db, game.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if summary.Count != 1 || summary.Avg != 5 {
		t.Errorf("summary = %+v, want count 1 avg 5", summary)
	}
	if summary.Dist[1] != 0 || summary.Dist[4] != 1 {
		t.Errorf("dist = %v, old bucket should be empty", summary.Dist)
	}
}
