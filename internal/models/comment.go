package models

import (
	"time"

	"gorm.io/gorm"
)

// CommentStatus is a comment's moderation state.
type CommentStatus string

const (
	CommentVisible CommentStatus = "visible"
	CommentHidden  CommentStatus = "hidden"
	CommentDeleted CommentStatus = "deleted"
)

// Comment is a user comment on a game's page.
//
// ReportsCount is denormalized from the CommentReport rows and updated in the
// same transaction as each report insert.
type Comment struct {
	gorm.Model
	GameID   uint   `gorm:"not null;index"`
	AuthorID uint   `gorm:"not null;index"`
	Content  string `gorm:"not null"`

	Status CommentStatus `gorm:"size:20;not null;default:'visible';index"`

	ModerationReason string `gorm:"size:512"`
	ModeratedByID    *uint
	ModeratedAt      *time.Time

	ReportsCount int64 `gorm:"not null;default:0;index"`

	Game    Game            `gorm:"foreignKey:GameID"`
	Author  User            `gorm:"foreignKey:AuthorID"`
	Reports []CommentReport `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE"`
}

// CommentReport is a user flagging a comment as inappropriate. The unique
// index caps each reporter at one report per comment.
type CommentReport struct {
	ID         uint      `gorm:"primaryKey"`
	CommentID  uint      `gorm:"not null;uniqueIndex:idx_reports_comment_reporter;index"`
	ReporterID uint      `gorm:"not null;uniqueIndex:idx_reports_comment_reporter"`
	Reason     string    `gorm:"size:512"`
	CreatedAt  time.Time
}
