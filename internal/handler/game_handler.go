package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/models"
	"gpx/backend/internal/moderation"
	"gpx/backend/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// region --- DTOs ---

// UploaderResponse is the public slice of a game's uploader.
type UploaderResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// RatingsResponse is a game's derived rating summary.
type RatingsResponse struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Dist  []int64 `json:"dist"`
}

// GameResponse defines the structure returned for a game.
type GameResponse struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Tagline         string           `json:"tagline"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	Tags            []string         `json:"tags"`
	CoverURL        string           `json:"cover_url"`
	FileURL         string           `json:"file_url"`
	Screens         []string         `json:"screens"`
	Kind            string           `json:"kind"`
	Uploader        UploaderResponse `json:"uploader"`
	Visibility      string           `json:"visibility"`
	SuspendedReason string           `json:"suspended_reason,omitempty"`
	SuspendedAt     *time.Time       `json:"suspended_at,omitempty"`
	Ratings         RatingsResponse  `json:"ratings"`
	CreatedAt       time.Time        `json:"created_at"`
}

func newGameResponse(game models.Game) GameResponse {
	dist := []int64(game.RatingsDist)
	if len(dist) != 5 {
		dist = make([]int64, 5)
	}
	return GameResponse{
		ID:          game.ID,
		Title:       game.Title,
		Slug:        game.Slug,
		Tagline:     game.Tagline,
		Description: game.Description,
		Category:    game.Category,
		Tags:        game.Tags,
		CoverURL:    game.CoverURL,
		FileURL:     game.FileURL,
		Screens:     game.Screens,
		Kind:        string(game.Kind),
		Uploader: UploaderResponse{
			ID:        game.Uploader.ID,
			Username:  game.Uploader.Username,
			AvatarURL: game.Uploader.AvatarURL,
		},
		Visibility:      string(game.Visibility),
		SuspendedReason: game.SuspendedReason,
		SuspendedAt:     game.SuspendedAt,
		Ratings:         RatingsResponse{Count: game.RatingsCount, Avg: game.RatingsAvg, Dist: dist},
		CreatedAt:       game.CreatedAt,
	}
}

// PaginatedGameResponse defines the structure for a paginated list of games.
type PaginatedGameResponse struct {
	Data []GameResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// endregion

// region --- multipart helpers ---

// saveTempUpload spools an uploaded file into {uploads}/tmp so the extractor
// can take ownership of it.
func saveTempUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	tmpDir := filepath.Join(config.AppConfig.UploadsRoot, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	tmp := filepath.Join(tmpDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, tmp); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return tmp, nil
}

// saveCoverUpload normalizes an uploaded cover into the game directory.
func saveCoverUpload(fh *multipart.FileHeader, gameDir, assetDir string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	defer f.Close()
	return upload.SaveCover(f, gameDir, assetDir)
}

// saveScreenUploads replaces the game's screenshot set with the uploaded one.
func saveScreenUploads(fhs []*multipart.FileHeader, gameDir, assetDir string) ([]string, error) {
	if len(fhs) > upload.MaxScreens {
		fhs = fhs[:upload.MaxScreens]
	}
	readers := make([]io.Reader, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return upload.ReplaceScreens(readers, gameDir, assetDir)
}

func formValue(form *multipart.Form, key string) (string, bool) {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.TrimSpace(vals[0]), true
}

func formTags(form *multipart.Form) ([]string, bool) {
	vals, ok := form.Value["tags[]"]
	if !ok {
		return nil, false
	}
	tags := make([]string, 0, len(vals))
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, true
}

func gamesDirFor(assetDir string) string {
	return filepath.Join(config.AppConfig.UploadsRoot, "games", assetDir)
}

// likeEscaper neutralizes LIKE metacharacters in user-supplied search text.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// endregion

// region --- Write Handlers ---

// CreateGame godoc
// @Summary      Upload a new game
// @Description  Accepts a multipart upload (bundle, cover, screenshots) and creates the game in review state. Client-supplied visibility is ignored: nobody self-publishes.
// @Tags         games
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title       formData  string  true   "Game title"
// @Param        slug        formData  string  false  "URL slug (derived from title when empty)"
// @Param        kind        formData  string  false  "html or download"  default(html)
// @Param        file        formData  file    true   "Game bundle (.html/.zip for html, .rar for download)"
// @Param        cover       formData  file    false  "Cover image"
// @Success      201  {object}  GameResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Slug already taken"
// @Router       /games [post]
func CreateGame(c *gin.Context) {
	userID, _ := currentUserID(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	title, _ := formValue(form, "title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must not be empty"})
		return
	}

	slug, _ := formValue(form, "slug")
	if slug == "" {
		slug = upload.Slugify(title)
	} else {
		slug = upload.Slugify(slug)
	}

	kind := models.KindHTML
	if v, _ := formValue(form, "kind"); v == string(models.KindDownload) {
		kind = models.KindDownload
	}

	category, _ := formValue(form, "category")
	if !models.ValidCategory(category) {
		category = "no-genre"
	}
	tagline, _ := formValue(form, "tagline")
	description, _ := formValue(form, "description")
	tags, _ := formTags(form)

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A game file is required"})
		return
	}

	assetDir := upload.NewAssetDir(slug)
	gameDir := gamesDirFor(assetDir)

	tmp, err := saveTempUpload(c, files[0])
	if err != nil {
		respondError(c, err)
		return
	}

	entry, err := upload.Extract(tmp, files[0].Filename, kind, gameDir)
	if err != nil {
		os.RemoveAll(gameDir)
		respondError(c, err)
		return
	}
	fileURL := upload.GameURL(assetDir, entry)

	var coverURL string
	if covers := form.File["cover"]; len(covers) > 0 {
		coverURL, err = saveCoverUpload(covers[0], gameDir, assetDir)
		if err != nil {
			os.RemoveAll(gameDir)
			respondError(c, err)
			return
		}
	}

	var screens []string
	if shots := form.File["screens[]"]; len(shots) > 0 {
		screens, err = saveScreenUploads(shots, gameDir, assetDir)
		if err != nil {
			os.RemoveAll(gameDir)
			respondError(c, err)
			return
		}
	}

	game := models.Game{
		Title:       title,
		Slug:        slug,
		Tagline:     tagline,
		Description: description,
		Category:    category,
		Tags:        tags,
		AssetDir:    assetDir,
		CoverURL:    coverURL,
		FileURL:     fileURL,
		Screens:     screens,
		Kind:        kind,
		UploaderID:  userID,
		// Server-side policy: every new game waits for moderation.
		Visibility:  models.VisibilityReview,
		RatingsDist: []int64{0, 0, 0, 0, 0},
	}

	if err := database.DB.Create(&game).Error; err != nil {
		// The row never landed, so the files must not stay behind.
		os.RemoveAll(gameDir)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already taken, pick another one"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create game"})
		return
	}

	database.DB.Preload("Uploader").First(&game, game.ID)
	c.JSON(http.StatusCreated, newGameResponse(game))
}

// UpdateGame godoc
// @Summary      Edit a game
// @Description  Owner-only. Metadata fields not supplied keep their previous values; new files re-run extraction. Visibility is preserved no matter what the payload says.
// @Tags         games
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200  {object}  GameResponse
// @Failure      403  {object}  ErrorResponse "Not the uploader"
// @Failure      404  {object}  ErrorResponse "Game not found"
// @Router       /games/{id} [put]
func UpdateGame(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.First(&game, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.UploaderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	// Visibility is deliberately absent here: only the moderation engine
	// changes it.
	updates := map[string]interface{}{}
	if v, ok := formValue(form, "title"); ok && v != "" {
		updates["title"] = v
	}
	if v, ok := formValue(form, "slug"); ok && v != "" {
		updates["slug"] = upload.Slugify(v)
	}
	if v, ok := formValue(form, "tagline"); ok {
		updates["tagline"] = v
	}
	if v, ok := formValue(form, "description"); ok {
		updates["description"] = v
	}
	if v, ok := formValue(form, "category"); ok && models.ValidCategory(v) {
		updates["category"] = v
	}
	if tags, ok := formTags(form); ok {
		updates["tags"] = datatypes.NewJSONSlice(tags)
	}

	kind := game.Kind
	if v, _ := formValue(form, "kind"); v == string(models.KindHTML) || v == string(models.KindDownload) {
		kind = models.GameKind(v)
		updates["kind"] = kind
	}
	// A kind switch without a new bundle would leave FileURL pointing at an
	// entry of the old kind.
	if kind != game.Kind && len(form.File["file"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Changing the kind requires uploading a new game file"})
		return
	}

	gameDir := gamesDirFor(game.AssetDir)

	if files := form.File["file"]; len(files) > 0 {
		tmp, err := saveTempUpload(c, files[0])
		if err != nil {
			respondError(c, err)
			return
		}
		entry, err := upload.Extract(tmp, files[0].Filename, kind, gameDir)
		if err != nil {
			respondError(c, err)
			return
		}
		updates["file_url"] = upload.GameURL(game.AssetDir, entry)
	}

	if covers := form.File["cover"]; len(covers) > 0 {
		coverURL, err := saveCoverUpload(covers[0], gameDir, game.AssetDir)
		if err != nil {
			respondError(c, err)
			return
		}
		updates["cover_url"] = coverURL
	}

	if shots := form.File["screens[]"]; len(shots) > 0 {
		screens, err := saveScreenUploads(shots, gameDir, game.AssetDir)
		if err != nil {
			respondError(c, err)
			return
		}
		updates["screens"] = datatypes.NewJSONSlice(screens)
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&game).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "Slug already taken, pick another one"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update game"})
			return
		}
	}

	database.DB.Preload("Uploader").First(&game, game.ID)
	c.JSON(http.StatusOK, newGameResponse(game))
}

// DeleteGame godoc
// @Summary      Delete a game
// @Description  Owner-only self-service delete. Cascades reviews, comments, monthly votes and the asset directory.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]bool "{"ok": true}"
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /games/{id} [delete]
func DeleteGame(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.First(&game, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.UploaderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if err := moderation.DeleteGame(database.DB, &game, config.AppConfig.UploadsRoot); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// endregion

// region --- Read Handlers ---

// GetGames godoc
// @Summary      List public games
// @Description  Returns public games, newest first, with optional uploader and kind filters.
// @Tags         games
// @Produce      json
// @Param        uploader query int    false "Filter by uploader ID"
// @Param        kind     query string false "Filter by kind (html|download)"
// @Success      200 {array} GameResponse
// @Router       /games [get]
func GetGames(c *gin.Context) {
	query := database.DB.Model(&models.Game{}).
		Where("visibility = ?", models.VisibilityPublic).
		Preload("Uploader").
		Order("created_at DESC")

	if uploader := c.Query("uploader"); uploader != "" {
		if uid, err := strconv.Atoi(uploader); err == nil {
			query = query.Where("uploader_id = ?", uid)
		}
	}
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var games []models.Game
	if err := query.Find(&games).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve games"})
		return
	}

	response := make([]GameResponse, 0, len(games))
	for _, game := range games {
		response = append(response, newGameResponse(game))
	}
	c.JSON(http.StatusOK, response)
}

// SearchGames godoc
// @Summary      Search public games
// @Description  Case-insensitive substring search over title and description, optionally filtered by category. Only public games are returned.
// @Tags         games
// @Produce      json
// @Param        q        query string false "Search query"
// @Param        category query string false "Genre tag"
// @Param        page     query int    false "Page number"  default(1)
// @Param        limit    query int    false "Items per page (max 60)"  default(24)
// @Success      200 {object} PaginatedGameResponse
// @Router       /games/search [get]
func SearchGames(c *gin.Context) {
	page, limit := pageParams(c, 24, 60)
	q := strings.TrimSpace(c.Query("q"))
	category := strings.TrimSpace(c.Query("category"))

	query := database.DB.Model(&models.Game{}).
		Where("visibility = ?", models.VisibilityPublic)
	if q != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		query = query.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	if category != "" && category != "all" {
		query = query.Where("category = ?", category)
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

// GetGameByID godoc
// @Summary      Get a single game by ID
// @Description  Non-public games answer 404 unless the caller is the uploader or an admin; review and suspended states leak nothing.
// @Tags         games
// @Produce      json
// @Param        id path int true "Game ID"
// @Success      200 {object} GameResponse
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id} [get]
func GetGameByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	var game models.Game
	if err := database.DB.Preload("Uploader").First(&game, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	if game.Visibility != models.VisibilityPublic && !canSeeHiddenGame(c, &game) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, newGameResponse(game))
}

// canSeeHiddenGame reports whether the (optionally authenticated) caller may
// view a game that is not public: its uploader, or an admin.
func canSeeHiddenGame(c *gin.Context, game *models.Game) bool {
	userID, ok := currentUserID(c)
	if !ok {
		return false
	}
	if userID == game.UploaderID {
		return true
	}
	var user models.User
	if err := database.DB.Select("id", "role").First(&user, userID).Error; err != nil {
		return false
	}
	return user.IsAdmin()
}

// endregion
