package handler

import (
	"net/http"
	"strconv"
	"time"

	"gpx/backend/internal/database"
	"gpx/backend/internal/models"
	"gpx/backend/internal/ratings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

// region --- DTOs ---

// ReviewInput defines the payload for creating or replacing a review.
type ReviewInput struct {
	Score int    `json:"score" binding:"required,min=1,max=5"`
	Text  string `json:"text"`
}

// ReviewResponse defines the structure returned for a review.
type ReviewResponse struct {
	ID        uint             `json:"id"`
	GameID    uint             `json:"game_id"`
	Score     int              `json:"score"`
	Text      string           `json:"text"`
	User      UploaderResponse `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newReviewResponse(r models.Review) ReviewResponse {
	return ReviewResponse{
		ID:     r.ID,
		GameID: r.GameID,
		Score:  r.Score,
		Text:   r.Text,
		User: UploaderResponse{
			ID:        r.User.ID,
			Username:  r.User.Username,
			AvatarURL: r.User.AvatarURL,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// PaginatedReviewResponse defines the structure for a paginated list of reviews.
type PaginatedReviewResponse struct {
	Data []ReviewResponse `json:"data"`
	Meta PaginationMeta   `json:"meta"`
}

// endregion

// UpsertReview godoc
// @Summary      Create or replace my review of a game
// @Description  One review per user per game. The write is an atomic upsert, and the game's rating summary is recomputed before the request returns.
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int         true "Game ID"
// @Param        input body  ReviewInput true "Score 1..5 and optional text"
// @Success      200 {object} ratings.Summary
// @Failure      400 {object} ErrorResponse "Score out of range"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id}/reviews [put]
func UpsertReview(c *gin.Context) {
	userID, _ := currentUserID(c)
	gameID, _ := strconv.Atoi(c.Param("id"))

	var input ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be 1..5"})
		return
	}

	var game models.Game
	if err := database.DB.Select("id").First(&game, gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	review := models.Review{
		GameID: game.ID,
		UserID: userID,
		Score:  input.Score,
		Text:   input.Text,
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "text", "updated_at"}),
	}).Create(&review).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
		return
	}

	// The review write only counts once the derived aggregate is current.
	summary, err := ratings.Recompute(database.DB, game.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeleteReview godoc
// @Summary      Delete my review
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        id  path int true "Game ID"
// @Param        rid path int true "Review ID"
// @Success      200 {object} ratings.Summary
// @Failure      403 {object} ErrorResponse "Not the review author"
// @Failure      404 {object} ErrorResponse
// @Router       /games/{id}/reviews/{rid} [delete]
func DeleteReview(c *gin.Context) {
	userID, _ := currentUserID(c)
	reviewID, _ := strconv.Atoi(c.Param("rid"))

	var review models.Review
	if err := database.DB.First(&review, reviewID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		return
	}
	if review.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if err := database.DB.Delete(&models.Review{}, review.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete review"})
		return
	}

	summary, err := ratings.Recompute(database.DB, review.GameID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListReviews godoc
// @Summary      List a game's reviews
// @Tags         reviews
// @Produce      json
// @Param        id    path  int true  "Game ID"
// @Param        page  query int false "Page number"  default(1)
// @Param        limit query int false "Items per page (max 50)"  default(10)
// @Success      200 {object} PaginatedReviewResponse
// @Router       /games/{id}/reviews [get]
func ListReviews(c *gin.Context) {
	gameID, _ := strconv.Atoi(c.Param("id"))
	page, limit := pageParams(c, 10, 50)

	var totalItems int64
	if err := database.DB.Model(&models.Review{}).Where("game_id = ?", gameID).Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count reviews"})
		return
	}

	var reviews []models.Review
	err := database.DB.Where("game_id = ?", gameID).
		Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reviews"})
		return
	}

	response := make([]ReviewResponse, 0, len(reviews))
	for _, r := range reviews {
		response = append(response, newReviewResponse(r))
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// GetMyReview godoc
// @Summary      Get my review of a game
// @Description  Returns score null when the caller has not reviewed the game (or is anonymous); used to pre-fill the review modal.
// @Tags         reviews
// @Produce      json
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]interface{}
// @Router       /games/{id}/reviews/me [get]
func GetMyReview(c *gin.Context) {
	gameID, _ := strconv.Atoi(c.Param("id"))
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"score": nil, "text": ""})
		return
	}

	var review models.Review
	err := database.DB.Where("game_id = ? AND user_id = ?", gameID, userID).First(&review).Error
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"score": nil, "text": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": review.Score, "text": review.Text})
}

// GetRatings godoc
// @Summary      Get a game's rating summary
// @Tags         reviews
// @Produce      json
// @Param        id path int true "Game ID"
// @Success      200 {object} RatingsResponse
// @Failure      404 {object} ErrorResponse
// @Router       /games/{id}/ratings [get]
func GetRatings(c *gin.Context) {
	gameID, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.Select("id", "ratings_count", "ratings_avg", "ratings_dist").First(&game, gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	dist := []int64(game.RatingsDist)
	if len(dist) != 5 {
		dist = make([]int64, 5)
	}
	c.JSON(http.StatusOK, RatingsResponse{Count: game.RatingsCount, Avg: game.RatingsAvg, Dist: dist})
}
