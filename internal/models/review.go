package models

import "time"

// Review is a user's score and write-up for a game. One review per
// (game, user) pair; the unique index backs the atomic upsert in the review
// handler. No soft delete: a removed review must free the slot immediately.
type Review struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	GameID uint `gorm:"not null;uniqueIndex:idx_reviews_game_user;index"`
	UserID uint `gorm:"not null;uniqueIndex:idx_reviews_game_user;index"`
	Score  int  `gorm:"not null"`
	Text   string

	Game Game `gorm:"foreignKey:GameID"`
	User User `gorm:"foreignKey:UserID"`
}
