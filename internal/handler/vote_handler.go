package handler

import (
	"net/http"
	"strconv"
	"time"

	"gpx/backend/internal/database"
	"gpx/backend/internal/models"
	"gpx/backend/internal/votes"

	"github.com/gin-gonic/gin"
)

// LeaderboardEntry is one row of the monthly leaderboard, with the game
// hydrated for display.
type LeaderboardEntry struct {
	Game  GameResponse `json:"game"`
	Votes int64        `json:"votes"`
}

// CastMonthlyVote godoc
// @Summary      Vote a game as game of the month
// @Description  One vote per user per calendar month; voting again replaces the previous pick in place. Only public games can receive votes.
// @Tags         monthly-vote
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} ErrorResponse "Game is not public"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id}/monthly-vote [post]
func CastMonthlyVote(c *gin.Context) {
	userID, _ := currentUserID(c)
	gameID, _ := strconv.Atoi(c.Param("id"))

	vote, err := votes.Cast(database.DB, userID, uint(gameID), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := votes.Count(database.DB, vote.GameID, vote.MonthKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Voted for monthly game successfully",
		"monthKey": vote.MonthKey,
		"game":     vote.GameID,
		"count":    count,
	})
}

// GetMyMonthlyVote godoc
// @Summary      Get my vote status for the current month
// @Tags         monthly-vote
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]interface{}
// @Router       /games/{id}/monthly-vote/me [get]
func GetMyMonthlyVote(c *gin.Context) {
	userID, _ := currentUserID(c)
	gameID, _ := strconv.Atoi(c.Param("id"))
	monthKey := votes.MonthKey(time.Now())

	vote, err := votes.MyVote(database.DB, userID, monthKey)
	if err != nil {
		respondError(c, err)
		return
	}
	if vote == nil {
		c.JSON(http.StatusOK, gin.H{
			"voted":      false,
			"gameVoted":  nil,
			"isThisGame": false,
			"monthKey":   monthKey,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"voted":      true,
		"gameVoted":  vote.GameID,
		"isThisGame": vote.GameID == uint(gameID),
		"monthKey":   monthKey,
	})
}

// GetMonthlyVoteCount godoc
// @Summary      Get a game's vote count for the current month
// @Tags         monthly-vote
// @Produce      json
// @Param        id path int true "Game ID"
// @Success      200 {object} map[string]interface{}
// @Router       /games/{id}/monthly-vote-count [get]
func GetMonthlyVoteCount(c *gin.Context) {
	gameID, _ := strconv.Atoi(c.Param("id"))
	monthKey := votes.MonthKey(time.Now())

	count, err := votes.Count(database.DB, uint(gameID), monthKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"monthKey": monthKey, "count": count})
}

// GetLeaderboard godoc
// @Summary      Monthly leaderboard
// @Description  Games ranked by vote count for the requested month (current month by default). Ties break toward the game whose earliest vote came first.
// @Tags         monthly-vote
// @Produce      json
// @Param        month query string false "Month key (YYYY-MM)"
// @Param        limit query int    false "Max entries (max 50)"  default(50)
// @Success      200 {array} LeaderboardEntry
// @Router       /monthly-vote/leaderboard [get]
func GetLeaderboard(c *gin.Context) {
	monthKey := c.DefaultQuery("month", votes.MonthKey(time.Now()))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := votes.Leaderboard(database.DB, monthKey, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		var game models.Game
		if err := database.DB.Preload("Uploader").First(&game, e.GameID).Error; err != nil {
			continue
		}
		response = append(response, LeaderboardEntry{Game: newGameResponse(game), Votes: e.Votes})
	}
	c.JSON(http.StatusOK, response)
}
