// Package moderation implements the visibility state machine for games and
// the status state machine for comments. All visibility changes go through
// here; the record managers never touch those fields.
package moderation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func loadGame(db *gorm.DB, gameID uint) (*models.Game, error) {
	var game models.Game
	if err := db.Preload("Uploader").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %d", apperr.ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &game, nil
}

// ApproveGame moves a game from review to public and clears any suspension
// bookkeeping.
func ApproveGame(db *gorm.DB, gameID uint) (*models.Game, error) {
	game, err := loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	if game.Visibility != models.VisibilityReview {
		return nil, fmt.Errorf("%w: only games in review can be approved", apperr.ErrValidation)
	}
	return setVisibility(db, game, models.VisibilityPublic, "", nil)
}

// SuspendGame moves a public game to suspended, recording the reason and
// timestamp. There is no path back to review: a published game is only ever
// suspended or deleted.
func SuspendGame(db *gorm.DB, gameID uint, reason string) (*models.Game, error) {
	game, err := loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	if game.Visibility != models.VisibilityPublic {
		return nil, fmt.Errorf("%w: only public games can be suspended", apperr.ErrValidation)
	}
	now := time.Now()
	return setVisibility(db, game, models.VisibilitySuspended, reason, &now)
}

// UnsuspendGame returns a suspended game to public and clears the suspension
// bookkeeping.
func UnsuspendGame(db *gorm.DB, gameID uint) (*models.Game, error) {
	game, err := loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	if game.Visibility != models.VisibilitySuspended {
		return nil, fmt.Errorf("%w: game is not suspended", apperr.ErrValidation)
	}
	return setVisibility(db, game, models.VisibilityPublic, "", nil)
}

func setVisibility(db *gorm.DB, game *models.Game, v models.Visibility, reason string, at *time.Time) (*models.Game, error) {
	err := db.Model(game).Updates(map[string]interface{}{
		"visibility":       v,
		"suspended_reason": reason,
		"suspended_at":     at,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	game.Visibility = v
	game.SuspendedReason = reason
	game.SuspendedAt = at
	log.WithFields(log.Fields{"game": game.ID, "visibility": v}).Info("game visibility changed")
	return game, nil
}

// DeleteGame removes the game and everything that references it: reviews,
// monthly votes, comments with their reports, and favorite links. Database
// deletions are authoritative; removing the on-disk asset directory is
// best-effort and only logged on failure. Shared by the owner's self-service
// delete and the admin reject/remove path.
func DeleteGame(db *gorm.DB, game *models.Game, uploadsRoot string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("game_id = ?", game.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentReport{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("game_id = ?", game.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", game.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", game.ID).Delete(&models.MonthlyVote{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_favorite_games WHERE game_id = ?", game.ID).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Game{}, game.ID).Error
	})
	if err != nil {
		return fmt.Errorf("%w: delete game: %v", apperr.ErrStorage, err)
	}

	if game.AssetDir != "" {
		dir := filepath.Join(uploadsRoot, "games", game.AssetDir)
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("failed to remove game assets")
		}
	}
	return nil
}

func loadComment(db *gorm.DB, commentID uint) (*models.Comment, error) {
	var c models.Comment
	if err := db.Preload("Author").First(&c, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: comment %d", apperr.ErrNotFound, commentID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &c, nil
}

// HideComment hides a visible comment, recording who moderated it and why.
func HideComment(db *gorm.DB, commentID, adminID uint, reason string) (*models.Comment, error) {
	c, err := loadComment(db, commentID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CommentVisible {
		return nil, fmt.Errorf("%w: only visible comments can be hidden", apperr.ErrValidation)
	}
	return setCommentStatus(db, c, adminID, models.CommentHidden, reason)
}

// RestoreComment returns a hidden comment to visible.
func RestoreComment(db *gorm.DB, commentID, adminID uint) (*models.Comment, error) {
	c, err := loadComment(db, commentID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CommentHidden {
		return nil, fmt.Errorf("%w: comment is not hidden", apperr.ErrValidation)
	}
	return setCommentStatus(db, c, adminID, models.CommentVisible, "")
}

func setCommentStatus(db *gorm.DB, c *models.Comment, adminID uint, status models.CommentStatus, reason string) (*models.Comment, error) {
	now := time.Now()
	err := db.Model(c).Updates(map[string]interface{}{
		"status":            status,
		"moderation_reason": reason,
		"moderated_by_id":   adminID,
		"moderated_at":      now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	c.Status = status
	c.ModerationReason = reason
	c.ModeratedByID = &adminID
	c.ModeratedAt = &now
	return c, nil
}

// DeleteComment removes a comment and its reports permanently.
func DeleteComment(db *gorm.DB, commentID uint) error {
	c, err := loadComment(db, commentID)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", c.ID).Delete(&models.CommentReport{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Comment{}, c.ID).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// ReportComment appends a report from reporterID and bumps the denormalized
// counter in the same transaction. Authors cannot report their own comments,
// and a reporter gets one report per comment; the unique index backs the
// duplicate check against concurrent double-submits.
func ReportComment(db *gorm.DB, commentID, reporterID uint, reason string) (*models.Comment, error) {
	c, err := loadComment(db, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID == reporterID {
		return nil, fmt.Errorf("%w: you cannot report your own comment", apperr.ErrValidation)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.CommentReport{}).
			Where("comment_id = ? AND reporter_id = ?", c.ID, reporterID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: you already reported this comment", apperr.ErrValidation)
		}
		report := models.CommentReport{CommentID: c.ID, ReporterID: reporterID, Reason: reason}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: you already reported this comment", apperr.ErrValidation)
			}
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", c.ID).
			UpdateColumn("reports_count", gorm.Expr("reports_count + ?", 1)).Error
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	c.ReportsCount++
	return c, nil
}
