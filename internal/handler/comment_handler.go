package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"gpx/backend/internal/database"
	"gpx/backend/internal/models"
	"gpx/backend/internal/moderation"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CommentInput defines the payload for posting a comment.
type CommentInput struct {
	Content string `json:"content" binding:"required"`
}

// ReportInput defines the payload for reporting a comment.
type ReportInput struct {
	Reason string `json:"reason"`
}

// CommentResponse defines the structure returned for a comment.
type CommentResponse struct {
	ID        uint             `json:"id"`
	GameID    uint             `json:"game_id"`
	Author    UploaderResponse `json:"author"`
	Content   string           `json:"content"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

func newCommentResponse(comment models.Comment) CommentResponse {
	return CommentResponse{
		ID:     comment.ID,
		GameID: comment.GameID,
		Author: UploaderResponse{
			ID:        comment.Author.ID,
			Username:  comment.Author.Username,
			AvatarURL: comment.Author.AvatarURL,
		},
		Content:   comment.Content,
		Status:    string(comment.Status),
		CreatedAt: comment.CreatedAt,
	}
}

// endregion

// ListComments godoc
// @Summary      List a game's comments
// @Description  Returns visible comments, oldest first. Non-public games answer with an empty list: outside moderation, comments exist only on live games.
// @Tags         comments
// @Produce      json
// @Param        id path int true "Game ID"
// @Success      200 {array} CommentResponse
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id}/comments [get]
func ListComments(c *gin.Context) {
	gameID, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.Select("id", "visibility").First(&game, gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.Visibility != models.VisibilityPublic {
		c.JSON(http.StatusOK, []CommentResponse{})
		return
	}

	var comments []models.Comment
	err := database.DB.Where("game_id = ? AND status = ?", game.ID, models.CommentVisible).
		Preload("Author").
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comments"})
		return
	}

	response := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		response = append(response, newCommentResponse(comment))
	}
	c.JSON(http.StatusOK, response)
}

// CreateComment godoc
// @Summary      Comment on a game
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int          true "Game ID"
// @Param        input  body CommentInput true "Comment content"
// @Success      201 {object} CommentResponse
// @Failure      400 {object} ErrorResponse "Empty content or non-public game"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id}/comments [post]
func CreateComment(c *gin.Context) {
	userID, _ := currentUserID(c)
	gameID, _ := strconv.Atoi(c.Param("id"))

	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}

	var game models.Game
	if err := database.DB.Select("id", "visibility").First(&game, gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.Visibility != models.VisibilityPublic {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot comment on a non-public game"})
		return
	}

	comment := models.Comment{
		GameID:   game.ID,
		AuthorID: userID,
		Content:  strings.TrimSpace(input.Content),
		Status:   models.CommentVisible,
	}
	if err := database.DB.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	database.DB.Preload("Author").First(&comment, comment.ID)
	c.JSON(http.StatusCreated, newCommentResponse(comment))
}

// ReportComment godoc
// @Summary      Report a comment
// @Description  Appends a report and bumps the counter; never changes the comment's status. Self-reports and duplicate reports are rejected.
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Comment ID"
// @Param        input body ReportInput true "Optional reason"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} ErrorResponse "Self-report or duplicate report"
// @Failure      404 {object} ErrorResponse "Comment not found"
// @Router       /comments/{id}/report [post]
func ReportComment(c *gin.Context) {
	userID, _ := currentUserID(c)
	commentID, _ := strconv.Atoi(c.Param("id"))

	var input ReportInput
	c.ShouldBindJSON(&input)

	comment, err := moderation.ReportComment(database.DB, uint(commentID), userID, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Report submitted",
		"commentId":    comment.ID,
		"reportsCount": comment.ReportsCount,
	})
}
