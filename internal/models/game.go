package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GameKind distinguishes browser-playable games from downloadable bundles.
type GameKind string

const (
	KindHTML     GameKind = "html"
	KindDownload GameKind = "download"
)

// Visibility is a game's publication state.
type Visibility string

const (
	// VisibilityReview means the game is waiting for admin approval.
	VisibilityReview Visibility = "review"
	// VisibilityPublic means the game is live on the platform.
	VisibilityPublic Visibility = "public"
	// VisibilitySuspended means an admin pulled the game for a policy violation.
	VisibilitySuspended Visibility = "suspended"
)

// Categories is the fixed set of genre tags a game can be filed under.
var Categories = []string{
	"no-genre",
	"action",
	"adventure",
	"card-game",
	"educational",
	"fighting",
	"interactive-fiction",
	"platformer",
	"puzzle",
	"racing",
	"rhythm",
	"role-playing",
	"shooter",
	"simulation",
	"sports",
	"strategy",
	"survival",
	"visual-novel",
	"other",
}

// ValidCategory reports whether c is one of the fixed genre tags.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Game represents an uploaded game and its publication state.
//
// RatingsCount, RatingsAvg and RatingsDist are derived fields owned by the
// ratings package; no other code path writes them.
type Game struct {
	gorm.Model
	Title       string `gorm:"size:255;not null"`
	Slug        string `gorm:"size:60;uniqueIndex;not null"`
	Tagline     string `gorm:"size:255"`
	Description string
	Category    string                      `gorm:"size:50;not null;default:'no-genre';index"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:json"`

	// AssetDir is the per-game directory name under {uploads}/games,
	// "{slug}-{random suffix}". FileURL and every cover/screen URL live
	// under /uploads/games/{AssetDir}/.
	AssetDir string                      `gorm:"size:80;not null"`
	CoverURL string                      `gorm:"size:512"`
	FileURL  string                      `gorm:"size:512;not null"`
	Screens  datatypes.JSONSlice[string] `gorm:"type:json"`
	Kind     GameKind                    `gorm:"size:20;not null;default:'html'"`

	UploaderID uint `gorm:"not null;index"`
	Uploader   User `gorm:"foreignKey:UploaderID"`

	Visibility      Visibility `gorm:"size:20;not null;default:'review';index"`
	SuspendedReason string     `gorm:"size:512"`
	SuspendedAt     *time.Time

	RatingsCount int64                      `gorm:"not null;default:0"`
	RatingsAvg   float64                    `gorm:"not null;default:0"`
	RatingsDist  datatypes.JSONSlice[int64] `gorm:"type:json"`
}
