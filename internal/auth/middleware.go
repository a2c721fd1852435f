package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/models"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
)

// parseUserID verifies a bearer token string and returns the user ID it
// carries.
func parseUserID(tokenString string) (uint, bool) {
	token, err := gojwt.Parse(tokenString, func(token *gojwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return 0, false
	}
	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, false
	}
	return uint(userIDFloat), true
}

// AuthMiddleware creates a gin middleware requiring a valid bearer token.
// It loads the account, rejects suspended users with 423, and lazily
// reactivates suspensions whose expiry has passed. Sets "userID" and
// "userRole" on the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		userID, ok := parseUserID(parts[1])
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		var user models.User
		if err := database.DB.First(&user, userID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		now := time.Now()
		if user.Status == models.StatusSuspended && !user.SuspensionActive(now) {
			// Suspension expired; reactivate on the way through.
			database.DB.Model(&user).Updates(map[string]interface{}{
				"status":           models.StatusActive,
				"suspended_reason": "",
				"suspended_until":  nil,
			})
			user.Status = models.StatusActive
		}
		if user.SuspensionActive(now) {
			c.AbortWithStatusJSON(http.StatusLocked, gin.H{
				"error":  "Account suspended",
				"reason": user.SuspendedReason,
				"until":  user.SuspendedUntil,
			})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", user.Role)
		c.Next()
	}
}
