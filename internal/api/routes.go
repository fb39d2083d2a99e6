package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/editor"
	"cvbuilder/internal/mail"
	"cvbuilder/internal/storage"
)

// Dependencies 聚合路由注册所需的全部依赖。
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	AsynqClient *asynq.Client
	AuthService *auth.AuthService
	Redis       *redis.Client
	Logger      *slog.Logger
	Storage     *storage.Client
	MailSender  mail.Sender
	Assist      *ai.Assist
	DraftStore  editor.DraftStore
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	authHandler := NewAuthHandler(AuthHandlerOptions{
		DB:                    deps.DB,
		AuthService:           deps.AuthService,
		Redis:                 deps.Redis,
		MailSender:            deps.MailSender,
		GoogleClientID:        cfg.Google.ClientID,
		GoogleClientSecret:    cfg.Google.ClientSecret,
		GoogleRedirectURL:     cfg.Google.RedirectURL,
		Logger:                deps.Logger,
		ClientURL:             cfg.API.ClientURL,
		LoginRateLimitPerHour: cfg.API.LoginRateLimitPerHour,
		LoginLockThreshold:    cfg.API.LoginLockThreshold,
		LoginLockTTL:          time.Duration(cfg.API.LoginLockTTLMinutes) * time.Minute,
		CookieDomain:          cfg.API.CookieDomain,
	})
	cvHandler := NewCVHandler(deps.DB, cfg.API.MaxCVsPerUser)
	publicHandler := NewPublicHandler(deps.DB)
	userHandler := NewUserHandler(deps.DB, deps.AuthService, deps.Storage)
	aiHandler := NewAIHandler(deps.Assist)
	guestHandler := NewGuestHandler(deps.DB, deps.DraftStore, cfg.API.MaxCVsPerUser)
	assetHandler := NewAssetHandler(deps.Storage, deps.Logger, cfg.API.ClamdAddr)
	notificationHandler := NewNotificationHandler(deps.AsynqClient)

	authMiddleware := middleware.AuthMiddleware(deps.AuthService)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.GET("/google", authHandler.GoogleLogin)
		authGroup.GET("/google/callback", authHandler.GoogleCallback)
	}

	cvGroup := router.Group("/cvs")
	cvGroup.Use(authMiddleware)
	{
		cvGroup.POST("", cvHandler.CreateCV)
		cvGroup.GET("", cvHandler.ListCVs)
		cvGroup.GET("/:id", cvHandler.GetCV)
		cvGroup.PUT("/:id", cvHandler.UpdateCV)
		cvGroup.DELETE("/:id", cvHandler.DeleteCV)
		cvGroup.POST("/:id/duplicate", cvHandler.DuplicateCV)
		cvGroup.PUT("/:id/toggle-share", cvHandler.ToggleShare)
		cvGroup.GET("/:id/docx", cvHandler.ExportDOCX)
		cvGroup.POST("/compare", cvHandler.CompareCVs)
	}

	router.GET("/public/:shareToken", publicHandler.GetPublicCV)

	userGroup := router.Group("/user")
	userGroup.Use(authMiddleware)
	{
		userGroup.GET("/me", userHandler.GetProfile)
		userGroup.PUT("/me", userHandler.UpdateProfile)
		userGroup.PUT("/password", userHandler.ChangePassword)
		userGroup.DELETE("/me", userHandler.DeleteAccount)
	}

	aiGroup := router.Group("/ai")
	aiGroup.Use(authMiddleware)
	{
		aiGroup.POST("/generate", aiHandler.Generate)
		aiGroup.POST("/proofread", aiHandler.Proofread)
		aiGroup.POST("/score", aiHandler.Score)
	}

	assetGroup := router.Group("/assets")
	assetGroup.Use(authMiddleware)
	{
		assetGroup.POST("/upload", assetHandler.UploadAsset)
		assetGroup.GET("", assetHandler.ListAssets)
		assetGroup.GET("/view", assetHandler.GetAssetURL)
		assetGroup.DELETE("", assetHandler.DeleteAsset)
	}

	guestGroup := router.Group("/guest/draft")
	{
		guestGroup.GET("", guestHandler.GetDraft)
		guestGroup.PUT("", guestHandler.PutDraft)
		guestGroup.POST("/ops", guestHandler.ApplyOp)
		guestGroup.POST("/save", guestHandler.SaveDraft)
		guestGroup.POST("/claim", authMiddleware, guestHandler.ClaimDraft)
	}

	internalGroup := router.Group("/notifications")
	internalGroup.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
	{
		internalGroup.POST("/new-template", notificationHandler.AnnounceNewTemplate)
	}
}
