package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/database"
	"cvbuilder/internal/mail"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"
const oauthStateKeyPrefix = "auth:oauth:state:"
const oauthStateTTL = 10 * time.Minute
const resetCodeTTL = time.Hour

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthHandler 处理注册、登录、找回密码、Google 登录、刷新与退出。
type AuthHandler struct {
	db                    *gorm.DB
	authService           *auth.AuthService
	redis                 redis.UniversalClient
	mailSender            mail.Sender
	oauthConfig           *oauth2.Config
	logger                *slog.Logger
	clientURL             string
	loginRateLimitPerHour int
	loginLockThreshold    int
	loginLockTTL          time.Duration
	cookieDomain          string
}

// AuthHandlerOptions 聚合认证处理器的依赖与参数。
type AuthHandlerOptions struct {
	DB                    *gorm.DB
	AuthService           *auth.AuthService
	Redis                 redis.UniversalClient
	MailSender            mail.Sender
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURL     string
	Logger                *slog.Logger
	ClientURL             string
	LoginRateLimitPerHour int
	LoginLockThreshold    int
	LoginLockTTL          time.Duration
	CookieDomain          string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(opts AuthHandlerOptions) *AuthHandler {
	var oauthConfig *oauth2.Config
	if opts.GoogleClientID != "" {
		oauthConfig = &oauth2.Config{
			ClientID:     opts.GoogleClientID,
			ClientSecret: opts.GoogleClientSecret,
			RedirectURL:  opts.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}

	return &AuthHandler{
		db:                    opts.DB,
		authService:           opts.AuthService,
		redis:                 opts.Redis,
		mailSender:            opts.MailSender,
		oauthConfig:           oauthConfig,
		logger:                opts.Logger,
		clientURL:             strings.TrimRight(opts.ClientURL, "/"),
		loginRateLimitPerHour: opts.LoginRateLimitPerHour,
		loginLockThreshold:    opts.LoginLockThreshold,
		loginLockTTL:          opts.LoginLockTTL,
		cookieDomain:          opts.CookieDomain,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"fullName" binding:"max=255"`
}

// Register 创建新账号。邮箱已存在时返回 400。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	var existing database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		logger.Info("register conflict: email already registered")
		BadRequest(c, "Email already in use")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{
		Email:        email,
		PasswordHash: hashed,
		FullName:     strings.TrimSpace(req.FullName),
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.Status(http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login 校验口令并返回 Token。失败统一返回 400，不区分账号是否存在。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	// 速率限制：每 IP+邮箱 每小时 N 次。redis 故障时放行。
	rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		count = 0
	}
	if count > int64(h.loginRateLimitPerHour) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	// 锁定检查
	lockKey := "lock:login:" + email
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "account temporarily locked"})
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			_ = h.incrementLoginFail(ctx, email)
			BadRequest(c, "Invalid email or password")
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, email)
		BadRequest(c, "Invalid email or password")
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()

	tokenPair, err := h.authService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.replyWithTokenPair(c, tokenPair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌立即失效。
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	if claims.TokenType != "refresh" || claims.ID == "" {
		logger.Info("refresh token wrong type or missing jti")
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		logger.Error("refresh generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 旋转旧刷新令牌，防止重复使用。
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.replyWithTokenPair(c, tokenPair)
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		BadRequest(c, "refresh token missing")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("logout token invalid", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	if claims.TokenType != "refresh" || claims.ID == "" {
		logger.Info("logout wrong token type or missing jti")
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
	})
	c.Status(http.StatusOK)
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

const forgotPasswordReply = "If the email exists, a reset code has been sent."

// ForgotPassword 生成 6 位找回码并发送邮件。
// 无论邮箱是否注册都返回同一句话，避免账号枚举。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("forgot password lookup failed", slog.Any("error", err))
		}
		c.JSON(http.StatusOK, gin.H{"message": forgotPasswordReply})
		return
	}

	code, err := generateResetCode()
	if err != nil {
		logger.Error("generate reset code failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	expires := time.Now().Add(resetCodeTTL)
	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_code":       code,
		"reset_expires_at": expires,
	}).Error; err != nil {
		logger.Error("store reset code failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	subject, body := mail.ResetCodeEmail(code)
	if err := h.mailSender.Send(user.Email, subject, body); err != nil {
		// 发信失败不暴露给调用方，响应保持一致。
		logger.Error("send reset code failed", slog.Any("error", err))
	}

	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordReply})
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

// ResetPassword 校验找回码并更新密码，使用后立即清除找回码。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		logger.Info("reset password: user not found")
		BadRequest(c, "Invalid or expired reset code")
		return
	}

	if user.ResetCode == "" || user.ResetCode != req.Code ||
		user.ResetExpiresAt == nil || time.Now().After(*user.ResetExpiresAt) {
		logger.Info("reset password: code mismatch or expired")
		BadRequest(c, "Invalid or expired reset code")
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("reset password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":    hashed,
		"reset_code":       "",
		"reset_expires_at": nil,
	}).Error; err != nil {
		logger.Error("reset password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("password reset", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// GoogleLogin 重定向到 Google 授权页，state 随机并存入 redis。
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.oauthConfig == nil {
		Internal(c, "google login is not configured")
		return
	}

	state := uuid.NewString()
	ctx := c.Request.Context()
	if err := h.redis.Set(ctx, oauthStateKeyPrefix+state, "1", oauthStateTTL).Err(); err != nil {
		h.loggerFromContext(c).Error("store oauth state failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.oauthConfig.AuthCodeURL(state))
}

type googleUserinfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallback 处理 Google 回调：换取令牌、读取用户信息、
// 依次按 GoogleID / 邮箱匹配账号，必要时创建新账号，最终带 token 跳回前端。
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauthConfig == nil {
		Internal(c, "google login is not configured")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	state := c.Query("state")
	if state == "" {
		BadRequest(c, "missing oauth state")
		return
	}
	deleted, err := h.redis.Del(ctx, oauthStateKeyPrefix+state).Result()
	if err != nil {
		logger.Error("oauth state lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if deleted == 0 {
		logger.Info("oauth state unknown or expired")
		BadRequest(c, "invalid oauth state")
		return
	}

	code := c.Query("code")
	if code == "" {
		BadRequest(c, "missing oauth code")
		return
	}

	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		logger.Info("oauth code exchange failed", slog.Any("error", err))
		BadRequest(c, "oauth exchange failed")
		return
	}

	info, err := h.fetchGoogleUserinfo(ctx, token)
	if err != nil {
		logger.Error("fetch google userinfo failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if info.Email == "" || info.ID == "" {
		logger.Info("google userinfo incomplete")
		BadRequest(c, "google account missing email")
		return
	}

	user, err := h.findOrCreateGoogleUser(ctx, info)
	if err != nil {
		logger.Error("google account resolution failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.Redirect(http.StatusTemporaryRedirect,
		fmt.Sprintf("%s/login?token=%s", h.clientURL, tokenPair.AccessToken))
}

func (h *AuthHandler) fetchGoogleUserinfo(ctx context.Context, token *oauth2.Token) (googleUserinfo, error) {
	var info googleUserinfo

	resp, err := h.oauthConfig.Client(ctx, token).Get(googleUserinfoURL)
	if err != nil {
		return info, fmt.Errorf("get userinfo: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode userinfo: %w", err)
	}
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	return info, nil
}

func (h *AuthHandler) findOrCreateGoogleUser(ctx context.Context, info googleUserinfo) (*database.User, error) {
	var user database.User

	err := h.db.WithContext(ctx).Where("google_id = ?", info.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 邮箱已有本地账号时补记 GoogleID，实现账号关联。
	err = h.db.WithContext(ctx).Where("email = ?", info.Email).First(&user).Error
	if err == nil {
		if err := h.db.WithContext(ctx).Model(&user).Update("google_id", info.ID).Error; err != nil {
			return nil, err
		}
		googleID := info.ID
		user.GoogleID = &googleID
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 首次使用 Google 登录：创建账号，密码随机且不可知。
	hashed, err := h.authService.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	googleID := info.ID
	user = database.User{
		Email:        info.Email,
		PasswordHash: hashed,
		FullName:     info.Name,
		Avatar:       info.Picture,
		GoogleID:     &googleID,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, tokenPair auth.TokenPair) {
	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	})
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func (h *AuthHandler) getCookieDomain() string { return strings.TrimSpace(h.cookieDomain) }

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	failKey := "lock:login:fail:" + email
	count, err := h.redis.Incr(ctx, failKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		_ = h.redis.Expire(ctx, failKey, h.loginLockTTL).Err()
	}
	if count >= int64(h.loginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.loginLockTTL).Err()
	}
	return nil
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
