package models

import "time"

// MonthlyVote is a user's "game of the month" pick. One row per
// (user, monthKey); changing the vote overwrites GameID in place via the
// upsert in the votes package, so no vote history is kept. CreatedAt marks
// the user's first vote of the month and breaks leaderboard ties.
type MonthlyVote struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID   uint   `gorm:"not null;uniqueIndex:idx_votes_user_month;index"`
	MonthKey string `gorm:"size:7;not null;uniqueIndex:idx_votes_user_month;index"`
	GameID   uint   `gorm:"not null;index"`

	User User `gorm:"foreignKey:UserID"`
	Game Game `gorm:"foreignKey:GameID"`
}
