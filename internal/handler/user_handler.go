package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/mailer"
	"gpx/backend/internal/models"
	"gpx/backend/internal/upload"
	"gpx/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// randomToken returns a hex string suitable for one-shot email links.
func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username string `json:"username" binding:"required,min=2,max=40" example:"gamedev42"`
	Email    string `json:"email" binding:"required,email" example:"dev@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"gamedev42"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// UpdateProfileInput defines the editable profile fields.
type UpdateProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Website     *string `json:"website"`
	Twitter     *string `json:"twitter"`
	Youtube     *string `json:"youtube"`
	Github      *string `json:"github"`
}

// ForgotPasswordInput requests a password-reset mail.
type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordInput redeems a reset token.
type ResetPasswordInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// UserLinks groups a profile's external links.
type UserLinks struct {
	Website string `json:"website"`
	Twitter string `json:"twitter"`
	Youtube string `json:"youtube"`
	Github  string `json:"github"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	BannerURL   string    `json:"banner_url"`
	Links       UserLinks `json:"links"`
	CreatedAt   time.Time `json:"created_at"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	PublicUserResponse
	Email *string `json:"email"`
	Role  string  `json:"role"`
}

func newPublicUserResponse(u models.User) PublicUserResponse {
	return PublicUserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		BannerURL:   u.BannerURL,
		Links: UserLinks{
			Website: u.LinkWebsite,
			Twitter: u.LinkTwitter,
			Youtube: u.LinkYoutube,
			Github:  u.LinkGithub,
		},
		CreatedAt: u.CreatedAt,
	}
}

func newPrivateUserResponse(u models.User) PrivateUserResponse {
	return PrivateUserResponse{
		PublicUserResponse: newPublicUserResponse(u),
		Email:              u.Email,
		Role:               u.Role,
	}
}

// endregion

// region --- Auth Handlers ---

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a local account and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /auth/register [post]
func RegisterUser(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	user := models.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        &email,
		PasswordHash: string(hashedPassword),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := sendVerifyEmail(&user); err != nil {
		// The account exists either way; resend-verify covers the gap.
		log.WithError(err).WithField("user", user.ID).Warn("failed to queue verification mail")
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// sendVerifyEmail stores a fresh verification token on the user and queues
// the confirmation mail.
func sendVerifyEmail(user *models.User) error {
	if user.Email == nil {
		return nil
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(24 * time.Hour)

	err = database.DB.Model(user).Updates(map[string]interface{}{
		"verify_email_token":   token,
		"verify_email_expires": expires,
	}).Error
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", config.AppConfig.ClientURL, token)
	mailer.Enqueue(mailer.Message{
		To:      *user.Email,
		Subject: "Confirm your GPX email address",
		Text:    fmt.Sprintf("Hi %s,\n\nConfirm your email address with this link (valid for 24 hours):\n%s\n\n– The GPX team", user.Username, link),
		HTML:    fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Confirm your email address with <a href=%q>this link</a>. The link is valid for 24 hours.</p><p>– The GPX team</p>", user.Username, link),
	})
	return nil
}

// VerifyEmail godoc
// @Summary      Confirm an email address
// @Description  Redeems the token from the confirmation mail and marks the account's email as verified.
// @Tags         auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} map[string]bool "{"verified": true}"
// @Failure      400 {object} ErrorResponse "Invalid or expired token"
// @Router       /auth/verify-email [get]
func VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	var user models.User
	err := database.DB.
		Where("verify_email_token = ? AND verify_email_expires > ?", token, time.Now()).
		First(&user).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification token"})
		return
	}

	err = database.DB.Model(&user).Updates(map[string]interface{}{
		"email_verified":       true,
		"verify_email_token":   nil,
		"verify_email_expires": nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ResendVerifyEmail godoc
// @Summary      Resend the email confirmation mail
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]bool "{"ok": true}"
// @Failure      400 {object} ErrorResponse "No email on the account, or already verified"
// @Router       /auth/resend-verify [post]
func ResendVerifyEmail(c *gin.Context) {
	userID, _ := currentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if user.Email == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Account has no email address"})
		return
	}
	if user.EmailVerified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is already verified"})
		return
	}

	if err := sendVerifyEmail(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue verification mail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates with username or email plus password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  map[string]string "{"token": "..."}"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Router       /auth/login [post]
func LoginUser(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	login := strings.ToLower(strings.TrimSpace(input.Login))
	if err := database.DB.Where("username = ? OR email = ?", input.Login, login).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// OAuth-only accounts carry no password hash and cannot log in locally.
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ForgotPassword godoc
// @Summary      Request a password reset mail
// @Description  Always answers 200 so the endpoint does not reveal which emails exist.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body ForgotPasswordInput true "Account email"
// @Success      200 {object} map[string]bool "{"ok": true}"
// @Router       /auth/forgot-password [post]
func ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	token, err := randomToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create reset token"})
		return
	}
	expires := time.Now().Add(time.Hour)

	err = database.DB.Model(&user).Updates(map[string]interface{}{
		"reset_password_token":   token,
		"reset_password_expires": expires,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create reset token"})
		return
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", config.AppConfig.ClientURL, token)
	mailer.Enqueue(mailer.Message{
		To:      email,
		Subject: "Reset your GPX password",
		Text:    fmt.Sprintf("Hi %s,\n\nUse this link to reset your password (valid for one hour):\n%s\n\n– The GPX team", user.Username, link),
		HTML:    fmt.Sprintf("<p>Hi <strong>%s</strong></p><p>Use <a href=%q>this link</a> to reset your password. The link is valid for one hour.</p><p>– The GPX team</p>", user.Username, link),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ResetPassword godoc
// @Summary      Redeem a password reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body ResetPasswordInput true "Token and new password"
// @Success      200 {object} map[string]bool "{"ok": true}"
// @Failure      400 {object} ErrorResponse "Invalid or expired token"
// @Router       /auth/reset-password [post]
func ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := database.DB.
		Where("reset_password_token = ? AND reset_password_expires > ?", input.Token, time.Now()).
		First(&user).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	err = database.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":          string(hashedPassword),
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// endregion

// region --- Profile Handlers ---

// GetMe godoc
// @Summary      Get my profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} PrivateUserResponse
// @Router       /users/me [get]
func GetMe(c *gin.Context) {
	userID, _ := currentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, newPrivateUserResponse(user))
}

// UpdateMe godoc
// @Summary      Update my profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Profile fields (absent fields are untouched)"
// @Success      200 {object} PrivateUserResponse
// @Failure      409 {object} ErrorResponse "Username already taken"
// @Router       /users/me [put]
func UpdateMe(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := map[string]interface{}{}
	if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
		updates["username"] = strings.TrimSpace(*input.Username)
	}
	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
	}
	if input.Website != nil {
		updates["link_website"] = strings.TrimSpace(*input.Website)
	}
	if input.Twitter != nil {
		updates["link_twitter"] = strings.TrimSpace(*input.Twitter)
	}
	if input.Youtube != nil {
		updates["link_youtube"] = strings.TrimSpace(*input.Youtube)
	}
	if input.Github != nil {
		updates["link_github"] = strings.TrimSpace(*input.Github)
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
	}

	database.DB.First(&user, userID)
	c.JSON(http.StatusOK, newPrivateUserResponse(user))
}

// UploadAvatar godoc
// @Summary      Upload my avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar formData file true "Avatar image"
// @Success      200 {object} map[string]string "{"avatar_url": "..."}"
// @Router       /users/me/avatar [post]
func UploadAvatar(c *gin.Context) {
	uploadUserImage(c, "avatar", "avatar_url", upload.SaveAvatar)
}

// UploadBanner godoc
// @Summary      Upload my profile banner
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        banner formData file true "Banner image"
// @Success      200 {object} map[string]string "{"banner_url": "..."}"
// @Router       /users/me/banner [post]
func UploadBanner(c *gin.Context) {
	uploadUserImage(c, "banner", "banner_url", upload.SaveBanner)
}

func uploadUserImage(c *gin.Context, field, column string, save func(r io.Reader, root string, userID uint) (string, error)) {
	userID, _ := currentUserID(c)

	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	url, err := save(f, config.AppConfig.UploadsRoot, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Update(column, url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{column: url})
}

// GetUserByID godoc
// @Summary      Get a public profile
// @Tags         users
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} PublicUserResponse
// @Failure      404 {object} ErrorResponse
// @Router       /users/{id} [get]
func GetUserByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, newPublicUserResponse(user))
}

// endregion

// region --- Favorites ---

// ToggleFavoriteGame godoc
// @Summary      Toggle a game in favorites
// @Description  Adds or removes a game from the user's favorites list.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]bool "{"is_favorite": true}"
// @Failure      404 {object} ErrorResponse "User or game not found"
// @Router       /games/{id}/favorite [post]
func ToggleFavoriteGame(c *gin.Context) {
	userID, _ := currentUserID(c)
	gameID, _ := strconv.Atoi(c.Param("id"))

	var user models.User
	// Eagerly load just the one favorite game we care about
	if err := database.DB.Preload("Favorites", "id = ?", gameID).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var game models.Game
	if err := database.DB.First(&game, gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	association := database.DB.Model(&user).Association("Favorites")

	// If the preload found the game, it's already a favorite
	if len(user.Favorites) > 0 {
		if err := association.Delete(&game); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from favorites"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_favorite": false})
	} else {
		if err := association.Append(&game); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to favorites"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_favorite": true})
	}
}

// GetFavorites godoc
// @Summary      List my favorite games
// @Description  Returns the public games in the user's favorites.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} GameResponse
// @Router       /users/me/favorites [get]
func GetFavorites(c *gin.Context) {
	userID, _ := currentUserID(c)

	var user models.User
	err := database.DB.
		Preload("Favorites", "visibility = ?", models.VisibilityPublic).
		Preload("Favorites.Uploader").
		First(&user, userID).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	response := make([]GameResponse, 0, len(user.Favorites))
	for _, game := range user.Favorites {
		response = append(response, newGameResponse(*game))
	}
	c.JSON(http.StatusOK, response)
}

// endregion
