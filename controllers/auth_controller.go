package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/middleware"
	"github.com/cppla/carbontrack/models"
	"github.com/cppla/carbontrack/notify"
	"github.com/cppla/carbontrack/utils"
)

// AuthController handles signup, login and logout. Every user owns exactly
// one ledger account, created at signup.
type AuthController struct {
	db       *gorm.DB
	svc      *ledger.Service
	center   *notify.Center
	secret   string
	tokenTTL time.Duration
}

func NewAuthController(db *gorm.DB, svc *ledger.Service, center *notify.Center, secret string, tokenTTL time.Duration) *AuthController {
	return &AuthController{db: db, svc: svc, center: center, secret: secret, tokenTTL: tokenTTL}
}

// Signup registers a local user and opens their account with the welcome bonus.
func (a *AuthController) Signup(ctx *gin.Context) {
	type request struct {
		Username    string `json:"username" binding:"required,min=3,max=64"`
		Email       string `json:"email"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"display_name"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may contain letters, digits, '-' and '_' only")
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrWeakPassword) {
			utils.Error(ctx, http.StatusBadRequest, 40003, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to hash password")
		return
	}
	displayName := utils.SanitizeText(req.DisplayName, 64)
	if displayName == "" {
		displayName = req.Username
	}

	var count int64
	if err := a.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to check username")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40905, "username already taken")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		DisplayName:  displayName,
		PasswordHash: hash,
		AccountID:    uuid.NewString(),
		RegisterIP:   ctx.ClientIP(),
	}
	if err := a.db.Create(&user).Error; err != nil {
		// lost a race on the unique index
		utils.Error(ctx, http.StatusConflict, 40905, "username already taken")
		return
	}

	acct, err := a.svc.Create(ctx.Request.Context(), user.AccountID, displayName)
	if err != nil {
		if delErr := a.db.Unscoped().Delete(&user).Error; delErr != nil {
			utils.Sugar.Errorw("failed to roll back user after account creation failed", "user", user.ID, "error", delErr)
		}
		respondLedgerError(ctx, err)
		return
	}

	token, expiresAt, err := utils.GenerateToken(a.secret, identityOf(user), a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate token")
		return
	}
	utils.Created(ctx, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userResponse(user),
		"account":    acct,
	})
}

// Login verifies user credentials, warms the account session and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "invalid username or password")
		return
	}

	if err := a.svc.Open(ctx.Request.Context(), user.AccountID); err != nil {
		respondLedgerError(ctx, err)
		return
	}

	token, expiresAt, err := utils.GenerateToken(a.secret, identityOf(user), a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userResponse(user),
	})
}

// Logout revokes the presented token and releases the in-memory session.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	expiresAt, _ := ctx.Get(middleware.ContextTokenExpiryKey)
	if exp, ok := expiresAt.(time.Time); ok && token != "" {
		utils.BlacklistToken(ctx.Request.Context(), token, exp)
	}
	if accountID, ok := getAccountID(ctx); ok {
		a.svc.Close(accountID)
		a.center.Forget(accountID)
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current user together with their account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40404, "user not found")
		return
	}
	acct, err := a.svc.Snapshot(ctx.Request.Context(), user.AccountID)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	unread, err := a.center.UnreadCount(ctx.Request.Context(), user.AccountID)
	if err != nil {
		utils.Sugar.Warnw("unread count unavailable", "account", user.AccountID, "error", err)
	}
	utils.Success(ctx, gin.H{
		"user":         userResponse(user),
		"account":      acct,
		"unread_count": unread,
	})
}

func identityOf(user models.User) utils.Identity {
	return utils.Identity{UserID: user.ID, Username: user.Username, AccountID: user.AccountID}
}

func validUsername(s string) bool {
	for _, r := range s {
		if r == '-' || r == '_' {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return false
	}
	return s != ""
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"account_id":   user.AccountID,
		"created_at":   user.CreatedAt,
	}
}
