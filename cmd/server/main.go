package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"gpx/backend/internal/auth"
	"gpx/backend/internal/config"
	"gpx/backend/internal/database"
	"gpx/backend/internal/handler"
	"gpx/backend/internal/jobs"
	"gpx/backend/internal/mailer"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "gpx/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           GPX API
// @version         1.0
// @description     This is the API for the GPX game sharing platform.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	mailer.Init(config.AppConfig)
	mailer.StartWorker(context.Background())

	scheduler := jobs.Start(database.DB, config.AppConfig.UploadsRoot)
	defer scheduler.Stop()

	router := gin.Default()
	router.MaxMultipartMemory = 32 << 20 // parse buffer only; full size limit below

	// Body size cap covers the game bundle plus cover and screenshots.
	maxBody := config.AppConfig.MaxUploadMB << 20
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		c.Next()
	})

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Uploaded assets (game bundles, covers, screenshots, avatars, banners)
	router.Static("/uploads", filepath.Clean(config.AppConfig.UploadsRoot))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
			authRoutes.POST("/forgot-password", handler.ForgotPassword)
			authRoutes.POST("/reset-password", handler.ResetPassword)
			authRoutes.GET("/verify-email", handler.VerifyEmail)
			authRoutes.POST("/resend-verify", auth.AuthMiddleware(), handler.ResendVerifyEmail)
		}

		// User routes
		userRoutes := apiV1.Group("/users")
		{
			userRoutes.GET("/:id", handler.GetUserByID)

			protected := userRoutes.Group("")
			protected.Use(auth.AuthMiddleware())
			{
				protected.GET("/me", handler.GetMe)
				protected.PUT("/me", handler.UpdateMe)
				protected.POST("/me/avatar", handler.UploadAvatar)
				protected.POST("/me/banner", handler.UploadBanner)
				protected.GET("/me/favorites", handler.GetFavorites)
			}
		}

		// Game routes
		gameRoutes := apiV1.Group("/games")
		{
			gameRoutes.GET("", handler.GetGames)
			gameRoutes.GET("/search", handler.SearchGames)
			gameRoutes.GET("/:id", auth.OptionalAuthMiddleware(), handler.GetGameByID)
			gameRoutes.GET("/:id/ratings", handler.GetRatings)
			gameRoutes.GET("/:id/reviews", handler.ListReviews)
			gameRoutes.GET("/:id/reviews/me", auth.OptionalAuthMiddleware(), handler.GetMyReview)
			gameRoutes.GET("/:id/comments", handler.ListComments)
			gameRoutes.GET("/:id/monthly-vote-count", handler.GetMonthlyVoteCount)

			protected := gameRoutes.Group("")
			protected.Use(auth.AuthMiddleware())
			{
				protected.POST("", handler.CreateGame)
				protected.PUT("/:id", handler.UpdateGame)
				protected.DELETE("/:id", handler.DeleteGame)
				protected.POST("/:id/favorite", handler.ToggleFavoriteGame)
				protected.PUT("/:id/reviews", handler.UpsertReview)
				protected.DELETE("/:id/reviews/:rid", handler.DeleteReview)
				protected.POST("/:id/comments", handler.CreateComment)
				protected.POST("/:id/monthly-vote", handler.CastMonthlyVote)
				protected.GET("/:id/monthly-vote/me", handler.GetMyMonthlyVote)
			}
		}

		// Comment routes (reporting lives on the comment, not the game)
		commentRoutes := apiV1.Group("/comments")
		commentRoutes.Use(auth.AuthMiddleware())
		{
			commentRoutes.POST("/:id/report", handler.ReportComment)
		}

		// Monthly vote leaderboard
		apiV1.GET("/monthly-vote/leaderboard", handler.GetLeaderboard)

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminUserRoutes := adminRoutes.Group("/users")
			{
				adminUserRoutes.GET("", handler.AdminListUsers)
				adminUserRoutes.PATCH("/:id", handler.AdminUpdateUser)
				adminUserRoutes.DELETE("/:id", handler.AdminDeleteUser)
			}

			adminGameRoutes := adminRoutes.Group("/games")
			{
				adminGameRoutes.GET("", handler.AdminListGames)
				adminGameRoutes.GET("/pending", handler.AdminListPendingGames)
				adminGameRoutes.PATCH("/:id/approve", handler.AdminApproveGame)
				adminGameRoutes.PATCH("/:id/suspend", handler.AdminSuspendGame)
				adminGameRoutes.PATCH("/:id/unsuspend", handler.AdminUnsuspendGame)
				adminGameRoutes.DELETE("/:id", handler.AdminDeleteGame)
			}

			adminCommentRoutes := adminRoutes.Group("/comments")
			{
				adminCommentRoutes.GET("", handler.AdminListComments)
				adminCommentRoutes.PATCH("/:id/hide", handler.AdminHideComment)
				adminCommentRoutes.PATCH("/:id/restore", handler.AdminRestoreComment)
				adminCommentRoutes.DELETE("/:id", handler.AdminDeleteComment)
			}
		}
	}

	addr := ":" + config.AppConfig.Port
	fmt.Println("Server is running on " + addr)
	fmt.Println("Swagger UI is available at http://localhost:" + config.AppConfig.Port + "/swagger/index.html")
	log.Fatal(router.Run(addr))
}
