package handler

import (
	"net/http"
	"strconv"
	"testing"

	"gpx/backend/internal/models"
	"gpx/backend/internal/ratings"

	"github.com/gin-gonic/gin"
)

func TestAdminDeleteUserRefreshesRatingSummaries(t *testing.T) {
	db := setupTest(t)
	admin := seedTestUser(t, db, "admin", "admin")
	uploader := seedTestUser(t, db, "dev", "user")
	reviewer := seedTestUser(t, db, "fan", "user")
	game := seedTestGame(t, db, "reviewed", uploader.ID, models.VisibilityPublic)

	review := models.Review{GameID: game.ID, UserID: reviewer.ID, Score: 5}
	if err := db.Create(&review).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := ratings.Recompute(db, game.ID); err != nil {
		t.Fatal(err)
	}

	c, w := testContext(t, http.MethodDelete, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(reviewer.ID))}}
	c.Set("userID", admin.ID)
	AdminDeleteUser(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var reviews int64
	if err := db.Model(&models.Review{}).Count(&reviews).Error; err != nil {
		t.Fatal(err)
	}
	if reviews != 0 {
		t.Fatalf("reviews left = %d, want 0", reviews)
	}

	// The reviewed game survives the cascade, so its derived rating fields
	// must reflect the now-empty review set.
	var stored models.Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.RatingsCount != 0 || stored.RatingsAvg != 0 {
		t.Errorf("stored count=%d avg=%v, want empty summary", stored.RatingsCount, stored.RatingsAvg)
	}
	for i, n := range stored.RatingsDist {
		if n != 0 {
			t.Errorf("dist[%d] = %d, want 0", i, n)
		}
	}
}

func TestAdminDeleteUserRemovesTheirGames(t *testing.T) {
	db := setupTest(t)
	admin := seedTestUser(t, db, "admin", "admin")
	uploader := seedTestUser(t, db, "dev", "user")
	seedTestGame(t, db, "owned", uploader.ID, models.VisibilityPublic)

	c, w := testContext(t, http.MethodDelete, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(uploader.ID))}}
	c.Set("userID", admin.ID)
	AdminDeleteUser(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var games, users int64
	db.Model(&models.Game{}).Count(&games)
	db.Model(&models.User{}).Count(&users)
	if games != 0 {
		t.Errorf("games left = %d, want 0", games)
	}
	if users != 1 {
		t.Errorf("users left = %d, want only the admin", users)
	}
}
