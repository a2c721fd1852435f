// Package ratings owns the derived rating fields on a Game. Recompute is the
// only code path that writes ratingsCount, ratingsAvg and ratingsDist.
package ratings

import (
	"fmt"
	"math"

	"gpx/backend/internal/apperr"
	"gpx/backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Summary is the recomputed rating aggregate for a game.
type Summary struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Dist  []int64 `json:"dist"`
}

// Recompute reads all reviews for the game, rebuilds the 5-bucket histogram
// and unconditionally overwrites the game's derived fields. Callers invoke it
// synchronously after every review upsert or deletion; its failure fails the
// triggering mutation.
func Recompute(db *gorm.DB, gameID uint) (Summary, error) {
	var rows []struct {
		Score int
		C     int64
	}
	err := db.Model(&models.Review{}).
		Select("score, COUNT(*) AS c").
		Where("game_id = ?", gameID).
		Group("score").
		Scan(&rows).Error
	if err != nil {
		return Summary{}, fmt.Errorf("%w: aggregate reviews: %v", apperr.ErrStorage, err)
	}

	dist := make([]int64, 5)
	var total, sum int64
	for _, r := range rows {
		// Scores outside 1..5 cannot pass review validation; clamp anyway.
		score := r.Score
		if score < 1 {
			score = 1
		} else if score > 5 {
			score = 5
		}
		dist[score-1] += r.C
		total += r.C
		sum += int64(score) * r.C
	}

	var avg float64
	if total > 0 {
		avg = math.Round(float64(sum)/float64(total)*100) / 100
	}

	err = db.Model(&models.Game{}).
		Where("id = ?", gameID).
		Updates(map[string]interface{}{
			"ratings_count": total,
			"ratings_avg":   avg,
			"ratings_dist":  datatypes.NewJSONSlice(dist),
		}).Error
	if err != nil {
		return Summary{}, fmt.Errorf("%w: write rating summary: %v", apperr.ErrStorage, err)
	}

	return Summary{Count: total, Avg: avg, Dist: dist}, nil
}
