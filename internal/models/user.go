package models

import (
	"time"

	"gorm.io/gorm"
)

// UserStatus is an account's standing on the platform.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
)

// User represents a user in the system.
//
// PasswordHash is empty for OAuth-provisioned accounts; GithubID/GoogleID are
// nil for local accounts. The unique indexes stay sparse because the columns
// are nullable.
type User struct {
	gorm.Model
	Username     string  `gorm:"size:40;uniqueIndex;not null"`
	Email        *string `gorm:"size:255;uniqueIndex"`
	PasswordHash string  `gorm:"size:255"`
	GithubID     *string `gorm:"size:64;uniqueIndex"`
	GoogleID     *string `gorm:"size:64;uniqueIndex"`

	Role string `gorm:"size:20;not null;default:'user';index"`

	Status          UserStatus `gorm:"size:20;not null;default:'active';index"`
	SuspendedReason string     `gorm:"size:512"`
	SuspendedUntil  *time.Time

	DisplayName string `gorm:"size:80"`
	Bio         string `gorm:"size:1000"`
	AvatarURL   string `gorm:"size:512"`
	BannerURL   string `gorm:"size:512"`

	LinkWebsite string `gorm:"size:255"`
	LinkTwitter string `gorm:"size:255"`
	LinkYoutube string `gorm:"size:255"`
	LinkGithub  string `gorm:"size:255"`

	Favorites []*Game `gorm:"many2many:user_favorite_games;"`

	EmailVerified      bool    `gorm:"not null;default:false"`
	VerifyEmailToken   *string `gorm:"size:64;index"`
	VerifyEmailExpires *time.Time

	ResetPasswordToken   *string `gorm:"size:64;index"`
	ResetPasswordExpires *time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == "admin" }

// SuspensionActive reports whether the user is currently suspended. A
// suspension with a past expiry no longer counts.
func (u *User) SuspensionActive(now time.Time) bool {
	if u.Status != StatusSuspended {
		return false
	}
	if u.SuspendedUntil != nil && now.After(*u.SuspendedUntil) {
		return false
	}
	return true
}
