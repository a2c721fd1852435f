package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/mailer"
	"gpx/backend/internal/models"
	"gpx/backend/internal/moderation"
	"gpx/backend/internal/ratings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// region --- DTOs ---

// AdminUserUpdateInput defines the moderation actions on a user account.
// Role changes and suspensions travel through the same PATCH endpoint.
type AdminUserUpdateInput struct {
	Role          *string `json:"role"`
	Status        *string `json:"status"`
	SuspendReason string  `json:"suspend_reason"`
	SuspendDays   int     `json:"suspend_days"`
}

// AdminUserResponse defines the structure returned to admins for a user.
type AdminUserResponse struct {
	ID              uint       `json:"id"`
	Username        string     `json:"username"`
	Email           *string    `json:"email"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	SuspendedReason string     `json:"suspended_reason,omitempty"`
	SuspendedUntil  *time.Time `json:"suspended_until,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newAdminUserResponse(u models.User) AdminUserResponse {
	return AdminUserResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Role:            u.Role,
		Status:          string(u.Status),
		SuspendedReason: u.SuspendedReason,
		SuspendedUntil:  u.SuspendedUntil,
		CreatedAt:       u.CreatedAt,
	}
}

// ReasonInput carries an optional moderation reason.
type ReasonInput struct {
	Reason string `json:"reason"`
}

// AdminCommentResponse extends the public comment shape with moderation
// bookkeeping.
type AdminCommentResponse struct {
	CommentResponse
	ReportsCount     int64      `json:"reports_count"`
	ModerationReason string     `json:"moderation_reason,omitempty"`
	ModeratedAt      *time.Time `json:"moderated_at,omitempty"`
}

func newAdminCommentResponse(comment models.Comment) AdminCommentResponse {
	return AdminCommentResponse{
		CommentResponse:  newCommentResponse(comment),
		ReportsCount:     comment.ReportsCount,
		ModerationReason: comment.ModerationReason,
		ModeratedAt:      comment.ModeratedAt,
	}
}

// endregion

// notifyUploader queues a mail to a game's uploader. Accounts without an
// email address are skipped silently.
func notifyUploader(game *models.Game, subject, text, html string) {
	if game.Uploader.Email == nil {
		return
	}
	mailer.Enqueue(mailer.Message{To: *game.Uploader.Email, Subject: subject, Text: text, HTML: html})
}

// region --- User Management ---

// AdminListUsers godoc
// @Summary      List all users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number"  default(1)
// @Param        limit query int false "Items per page (max 100)"  default(25)
// @Success      200 {object} PaginatedResponse[AdminUserResponse]
// @Router       /admin/users [get]
func AdminListUsers(c *gin.Context) {
	page, limit := pageParams(c, 25, 100)

	var totalItems int64
	if err := database.DB.Model(&models.User{}).Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
		return
	}

	var users []models.User
	err := database.DB.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, newAdminUserResponse(u))
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// AdminUpdateUser godoc
// @Summary      Change a user's role or suspension status
// @Description  Role accepts "user" or "admin". Status "suspended" suspends the account, with an optional reason and day count (absent days mean indefinite); status "active" reactivates it.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int                  true "User ID"
// @Param        input body AdminUserUpdateInput true "Changes"
// @Success      200 {object} AdminUserResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /admin/users/{id} [patch]
func AdminUpdateUser(c *gin.Context) {
	adminID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	var input AdminUserUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := map[string]interface{}{}
	if input.Role != nil {
		if *input.Role != "user" && *input.Role != "admin" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		if user.ID == adminID && *input.Role != "admin" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot demote yourself"})
			return
		}
		updates["role"] = *input.Role
	}
	if input.Status != nil {
		switch models.UserStatus(*input.Status) {
		case models.StatusSuspended:
			if user.ID == adminID {
				c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot suspend yourself"})
				return
			}
			updates["status"] = models.StatusSuspended
			updates["suspended_reason"] = input.SuspendReason
			if input.SuspendDays > 0 {
				updates["suspended_until"] = time.Now().AddDate(0, 0, input.SuspendDays)
			} else {
				updates["suspended_until"] = nil
			}
		case models.StatusActive:
			updates["status"] = models.StatusActive
			updates["suspended_reason"] = ""
			updates["suspended_until"] = nil
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		log.WithFields(log.Fields{"admin": adminID, "user": user.ID}).Info("admin updated user")
	}

	database.DB.First(&user, user.ID)
	c.JSON(http.StatusOK, newAdminUserResponse(user))
}

// AdminDeleteUser godoc
// @Summary      Delete a user account
// @Description  Removes the account together with every game it uploaded (and each game's comments, reviews and votes), plus the user's own reviews, votes, comments and reports.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Attempt to delete own account"
// @Failure      404 {object} ErrorResponse
// @Router       /admin/users/{id} [delete]
func AdminDeleteUser(c *gin.Context) {
	adminID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	if uint(id) == adminID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Their games first: each game delete cascades to its own dependents.
	var games []models.Game
	if err := database.DB.Where("uploader_id = ?", user.ID).Find(&games).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user's games"})
		return
	}
	for i := range games {
		if err := moderation.DeleteGame(database.DB, &games[i], config.AppConfig.UploadsRoot); err != nil {
			respondError(c, err)
			return
		}
	}

	// The remaining reviews sit on other uploaders' games; those games need
	// their rating summaries rebuilt once the rows are gone.
	var reviewedGameIDs []uint
	err := database.DB.Model(&models.Review{}).
		Where("user_id = ?", user.ID).
		Distinct().
		Pluck("game_id", &reviewedGameIDs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user's reviews"})
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reporter_id = ?", user.ID).Delete(&models.CommentReport{}).Error; err != nil {
			return err
		}
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("author_id = ?", user.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentReport{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("author_id = ?", user.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.MonthlyVote{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_favorite_games WHERE user_id = ?", user.ID).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.User{}, user.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	for _, gameID := range reviewedGameIDs {
		if _, err := ratings.Recompute(database.DB, gameID); err != nil {
			respondError(c, err)
			return
		}
	}

	log.WithFields(log.Fields{"admin": adminID, "user": user.ID}).Info("admin deleted user")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// endregion

// region --- Game Moderation ---

// AdminListGames godoc
// @Summary      List all games regardless of visibility
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        visibility query string false "Filter by visibility (review, public, suspended)"
// @Param        page       query int    false "Page number"  default(1)
// @Param        limit      query int    false "Items per page (max 100)"  default(25)
// @Success      200 {object} PaginatedGameResponse
// @Router       /admin/games [get]
func AdminListGames(c *gin.Context) {
	page, limit := pageParams(c, 25, 100)

	query := database.DB.Model(&models.Game{})
	if v := c.Query("visibility"); v != "" {
		query = query.Where("visibility = ?", v)
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count games"})
		return
	}

	var games []models.Game
	err := query.Preload("Uploader").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&games).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve games"})
		return
	}

	response := make([]GameResponse, 0, len(games))
	for _, game := range games {
		response = append(response, newGameResponse(game))
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// AdminListPendingGames godoc
// @Summary      List games awaiting review
// @Description  The moderation queue, oldest submission first.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} GameResponse
// @Router       /admin/games/pending [get]
func AdminListPendingGames(c *gin.Context) {
	var games []models.Game
	err := database.DB.Where("visibility = ?", models.VisibilityReview).
		Preload("Uploader").
		Order("created_at ASC").
		Find(&games).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve games"})
		return
	}

	response := make([]GameResponse, 0, len(games))
	for _, game := range games {
		response = append(response, newGameResponse(game))
	}
	c.JSON(http.StatusOK, response)
}

// AdminApproveGame godoc
// @Summary      Approve a game in review
// @Description  Publishes the game and mails the uploader.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} GameResponse
// @Failure      400 {object} ErrorResponse "Game is not in review"
// @Failure      404 {object} ErrorResponse
// @Router       /admin/games/{id}/approve [patch]
func AdminApproveGame(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	game, err := moderation.ApproveGame(database.DB, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	link := fmt.Sprintf("%s/game/%d", config.AppConfig.ClientURL, game.ID)
	notifyUploader(game,
		fmt.Sprintf("Your game %q is now live on GPX", game.Title),
		fmt.Sprintf("Hi %s,\n\nGood news: %q passed review and is now public.\n%s\n\n– The GPX team", game.Uploader.Username, game.Title, link),
		fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Good news: <strong>%s</strong> passed review and is now <a href=%q>public</a>.</p><p>– The GPX team</p>", game.Uploader.Username, game.Title, link),
	)
	c.JSON(http.StatusOK, newGameResponse(*game))
}

// AdminSuspendGame godoc
// @Summary      Suspend a public game
// @Description  Takes the game off the public surface, records the reason and mails the uploader.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Game ID"
// @Param        input body ReasonInput true "Suspension reason"
// @Success      200 {object} GameResponse
// @Failure      400 {object} ErrorResponse "Game is not public"
// @Failure      404 {object} ErrorResponse
// @Router       /admin/games/{id}/suspend [patch]
func AdminSuspendGame(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	var input ReasonInput
	c.ShouldBindJSON(&input)

	game, err := moderation.SuspendGame(database.DB, uint(id), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	reason := input.Reason
	if reason == "" {
		reason = "not specified"
	}
	notifyUploader(game,
		fmt.Sprintf("Your game %q has been suspended", game.Title),
		fmt.Sprintf("Hi %s,\n\nYour game %q has been suspended by the moderation team.\nReason: %s\n\nIt is no longer visible to other players. Reply to this mail if you think this is a mistake.\n\n– The GPX team", game.Uploader.Username, game.Title, reason),
		fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Your game <strong>%s</strong> has been suspended by the moderation team.</p><p>Reason: %s</p><p>It is no longer visible to other players. Reply to this mail if you think this is a mistake.</p><p>– The GPX team</p>", game.Uploader.Username, game.Title, reason),
	)
	c.JSON(http.StatusOK, newGameResponse(*game))
}

// AdminUnsuspendGame godoc
// @Summary      Lift a game's suspension
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} GameResponse
// @Failure      400 {object} ErrorResponse "Game is not suspended"
// @Failure      404 {object} ErrorResponse
// @Router       /admin/games/{id}/unsuspend [patch]
func AdminUnsuspendGame(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	game, err := moderation.UnsuspendGame(database.DB, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	notifyUploader(game,
		fmt.Sprintf("Your game %q is public again", game.Title),
		fmt.Sprintf("Hi %s,\n\nThe suspension on %q has been lifted and the game is public again.\n\n– The GPX team", game.Uploader.Username, game.Title),
		fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>The suspension on <strong>%s</strong> has been lifted and the game is public again.</p><p>– The GPX team</p>", game.Uploader.Username, game.Title),
	)
	c.JSON(http.StatusOK, newGameResponse(*game))
}

// AdminDeleteGame godoc
// @Summary      Delete (or reject) a game
// @Description  Removes the game and its assets. A game still in review gets a rejection mail; an already published game gets a removal mail. The optional reason is included in either.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  int    true  "Game ID"
// @Param        reason query string false "Reason forwarded to the uploader"
// @Success      200 {object} map[string]string
// @Failure      404 {object} ErrorResponse
// @Router       /admin/games/{id} [delete]
func AdminDeleteGame(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.Preload("Uploader").First(&game, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	wasPending := game.Visibility == models.VisibilityReview
	if err := moderation.DeleteGame(database.DB, &game, config.AppConfig.UploadsRoot); err != nil {
		respondError(c, err)
		return
	}

	reason := c.Query("reason")
	if reason == "" {
		reason = "not specified"
	}
	if wasPending {
		notifyUploader(&game,
			fmt.Sprintf("Your game %q was not approved", game.Title),
			fmt.Sprintf("Hi %s,\n\nUnfortunately %q did not pass review and has been removed.\nReason: %s\n\nYou are welcome to fix the issue and submit it again.\n\n– The GPX team", game.Uploader.Username, game.Title, reason),
			fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Unfortunately <strong>%s</strong> did not pass review and has been removed.</p><p>Reason: %s</p><p>You are welcome to fix the issue and submit it again.</p><p>– The GPX team</p>", game.Uploader.Username, game.Title, reason),
		)
	} else {
		notifyUploader(&game,
			fmt.Sprintf("Your game %q has been removed", game.Title),
			fmt.Sprintf("Hi %s,\n\nYour game %q has been removed from GPX by the moderation team.\nReason: %s\n\n– The GPX team", game.Uploader.Username, game.Title, reason),
			fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Your game <strong>%s</strong> has been removed from GPX by the moderation team.</p><p>Reason: %s</p><p>– The GPX team</p>", game.Uploader.Username, game.Title, reason),
		)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game deleted successfully"})
}

// endregion

// region --- Comment Moderation ---

// AdminListComments godoc
// @Summary      List comments for moderation
// @Description  Most reported first, then newest. Optionally filtered by status.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Filter by status (visible, hidden)"
// @Param        page   query int    false "Page number"  default(1)
// @Param        limit  query int    false "Items per page (max 100)"  default(25)
// @Success      200 {object} PaginatedResponse[AdminCommentResponse]
// @Router       /admin/comments [get]
func AdminListComments(c *gin.Context) {
	page, limit := pageParams(c, 25, 100)

	query := database.DB.Model(&models.Comment{})
	if s := c.Query("status"); s != "" {
		query = query.Where("status = ?", s)
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count comments"})
		return
	}

	var comments []models.Comment
	err := query.Preload("Author").
		Order("reports_count DESC, created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	response := make([]AdminCommentResponse, 0, len(comments))
	for _, comment := range comments {
		response = append(response, newAdminCommentResponse(comment))
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// AdminHideComment godoc
// @Summary      Hide a comment
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Comment ID"
// @Param        input body ReasonInput true "Moderation reason"
// @Success      200 {object} AdminCommentResponse
// @Failure      404 {object} ErrorResponse
// @Router       /admin/comments/{id}/hide [patch]
func AdminHideComment(c *gin.Context) {
	adminID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	var input ReasonInput
	c.ShouldBindJSON(&input)

	comment, err := moderation.HideComment(database.DB, uint(id), adminID, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAdminCommentResponse(*comment))
}

// AdminRestoreComment godoc
// @Summary      Restore a hidden comment
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Comment ID"
// @Success      200 {object} AdminCommentResponse
// @Failure      404 {object} ErrorResponse
// @Router       /admin/comments/{id}/restore [patch]
func AdminRestoreComment(c *gin.Context) {
	adminID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	comment, err := moderation.RestoreComment(database.DB, uint(id), adminID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAdminCommentResponse(*comment))
}

// AdminDeleteComment godoc
// @Summary      Delete a comment permanently
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Comment ID"
// @Success      200 {object} map[string]string
// @Failure      404 {object} ErrorResponse
// @Router       /admin/comments/{id} [delete]
func AdminDeleteComment(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	if err := moderation.DeleteComment(database.DB, uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// endregion
