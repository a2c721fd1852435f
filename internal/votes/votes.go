// Package votes is the monthly vote ledger: one mutable vote per user per
// calendar month, enforced by an atomic upsert on (user_id, month_key).
package votes

import (
	"errors"
	"fmt"
	"time"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MonthKey returns the YYYY-MM key for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Cast records (or replaces) the user's vote for the month containing now.
// The write is a single ON CONFLICT upsert overwriting game_id, so a
// double-submit from the same user can never produce two rows.
func Cast(db *gorm.DB, userID, gameID uint, now time.Time) (models.MonthlyVote, error) {
	var game models.Game
	if err := db.Select("id", "visibility").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.MonthlyVote{}, fmt.Errorf("%w: game %d", apperr.ErrNotFound, gameID)
		}
		return models.MonthlyVote{}, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if game.Visibility != models.VisibilityPublic {
		return models.MonthlyVote{}, fmt.Errorf("%w: cannot vote for a non-public game", apperr.ErrValidation)
	}

	vote := models.MonthlyVote{
		UserID:   userID,
		MonthKey: MonthKey(now),
		GameID:   gameID,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "month_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"game_id", "updated_at"}),
	}).Create(&vote).Error
	if err != nil {
		return models.MonthlyVote{}, fmt.Errorf("%w: upsert vote: %v", apperr.ErrStorage, err)
	}

	if err := db.Where("user_id = ? AND month_key = ?", userID, vote.MonthKey).First(&vote).Error; err != nil {
		return models.MonthlyVote{}, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return vote, nil
}

// MyVote returns the user's vote for monthKey, or nil if they have not voted.
func MyVote(db *gorm.DB, userID uint, monthKey string) (*models.MonthlyVote, error) {
	var vote models.MonthlyVote
	err := db.Where("user_id = ? AND month_key = ?", userID, monthKey).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &vote, nil
}

// Count returns the number of votes a game received in monthKey.
func Count(db *gorm.DB, gameID uint, monthKey string) (int64, error) {
	var n int64
	err := db.Model(&models.MonthlyVote{}).
		Where("game_id = ? AND month_key = ?", gameID, monthKey).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return n, nil
}

// Entry is one leaderboard row.
type Entry struct {
	GameID uint  `json:"gameId"`
	Votes  int64 `json:"votes"`
}

// Leaderboard groups the month's votes by game, most votes first. Ties break
// deterministically: the game whose earliest vote came first wins.
func Leaderboard(db *gorm.DB, monthKey string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	var entries []Entry
	err := db.Model(&models.MonthlyVote{}).
		Select("game_id, COUNT(*) AS votes").
		Where("month_key = ?", monthKey).
		Group("game_id").
		Order("votes DESC, MIN(created_at) ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return entries, nil
}
