package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Sam-arojo/Protrust/internal/auth"
	"github.com/Sam-arojo/Protrust/internal/config"
	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	mw "github.com/Sam-arojo/Protrust/internal/http/middleware"
	"github.com/Sam-arojo/Protrust/internal/model"
)

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type RegisterRequest struct {
	Username    string  `json:"username" binding:"required,min=3,max=32"`
	Password    string  `json:"password" binding:"required,min=6,max=64"`
	CompanyName *string `json:"company_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		basichttp.Fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	var count int64
	h.db.Model(&model.Issuer{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		basichttp.Fail(c, http.StatusConflict, "CONFLICT", "username already exists")
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "hash password failed")
		return
	}

	isSuper := false
	// Superadmin bootstrap: first account, or the predefined admin identity
	var issuerCount int64
	h.db.Model(&model.Issuer{}).Count(&issuerCount)
	if issuerCount == 0 {
		if h.cfg.AdminInitUser == "" || h.cfg.AdminInitUser == req.Username {
			isSuper = true
		}
	} else if h.cfg.AdminInitUser != "" && h.cfg.AdminInitUser == req.Username && h.cfg.AdminInitPass == req.Password {
		isSuper = true
	}

	now := time.Now()
	ip := c.ClientIP()
	issuer := &model.Issuer{
		Username:     req.Username,
		CompanyName:  req.CompanyName,
		Email:        req.Email,
		PasswordHash: string(hashed),
		IsSuperadmin: isSuper,
		LastLoginAt:  &now,
		LastIP:       &ip,
	}
	if err := h.db.Create(issuer).Error; err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create issuer")
		return
	}

	token, jti, err := auth.SignWithJTI(h.cfg.JWTSecret, issuer.ID, issuer.IsSuperadmin, h.cfg.JWTTTL)
	if err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to sign token")
		return
	}
	if err := h.createSessionAndEnforceLimit(c, issuer.ID, jti); err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist session")
		return
	}
	if h.cfg.CookieName != "" {
		c.SetCookie(h.cfg.CookieName, token, int(h.cfg.JWTTTL), "/", "", true, true)
	}
	basichttp.OK(c, gin.H{"issuer": sanitizeIssuer(issuer), "access_token": token})
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		basichttp.Fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid payload")
		return
	}
	var issuer model.Issuer
	if err := h.db.Where("username = ? AND deleted_at IS NULL", req.Username).First(&issuer).Error; err != nil {
		basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(issuer.PasswordHash), []byte(req.Password)) != nil {
		basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}

	now := time.Now()
	ip := c.ClientIP()
	h.db.Model(&issuer).Updates(map[string]any{"last_login_at": &now, "last_ip": &ip})

	token, jti, err := auth.SignWithJTI(h.cfg.JWTSecret, issuer.ID, issuer.IsSuperadmin, h.cfg.JWTTTL)
	if err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to sign token")
		return
	}
	if err := h.createSessionAndEnforceLimit(c, issuer.ID, jti); err != nil {
		basichttp.Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist session")
		return
	}
	if h.cfg.CookieName != "" {
		c.SetCookie(h.cfg.CookieName, token, int(h.cfg.JWTTTL), "/", "", true, true)
	}
	basichttp.OK(c, gin.H{"issuer": sanitizeIssuer(&issuer), "access_token": token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	tokenStr := ""
	hdr := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		tokenStr = strings.TrimSpace(hdr[7:])
	}
	if tokenStr == "" && h.cfg.CookieName != "" {
		if ck, err := c.Cookie(h.cfg.CookieName); err == nil {
			tokenStr = ck
		}
	}
	if tokenStr != "" {
		if claims, err := auth.Parse(h.cfg.JWTSecret, tokenStr); err == nil && claims.ID != "" {
			// Remove session by JTI; the token dies with it
			_ = h.db.Where("jti = ?", claims.ID).Delete(&model.IssuerSession{}).Error
		}
	}
	if h.cfg.CookieName != "" {
		c.SetCookie(h.cfg.CookieName, "", -1, "/", "", true, true)
	}
	basichttp.OK(c, gin.H{"ok": true})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	issuerID := mw.IssuerID(c)
	var issuer model.Issuer
	if err := h.db.First(&issuer, "id = ? AND deleted_at IS NULL", issuerID).Error; err != nil {
		basichttp.Fail(c, http.StatusNotFound, "NOT_FOUND", "issuer not found")
		return
	}
	basichttp.OK(c, sanitizeIssuer(&issuer))
}

// createSessionAndEnforceLimit records a session and keeps at most 2 active
// sessions per issuer by deleting older ones.
func (h *AuthHandler) createSessionAndEnforceLimit(c *gin.Context, issuerID, jti string) error {
	ua := c.Request.UserAgent()
	ip := c.ClientIP()
	uaPtr, ipPtr := (*string)(nil), (*string)(nil)
	if ua != "" {
		uaPtr = &ua
	}
	if ip != "" {
		ipPtr = &ip
	}
	exp := time.Now().Add(time.Duration(h.cfg.JWTTTL) * time.Second)

	sess := &model.IssuerSession{
		IssuerID:  issuerID,
		JTI:       jti,
		ExpiresAt: exp,
		IP:        ipPtr,
		UserAgent: uaPtr,
	}
	if err := h.db.Create(sess).Error; err != nil {
		return err
	}
	var ids []string
	h.db.Model(&model.IssuerSession{}).
		Where("issuer_id = ?", issuerID).
		Order("created_at DESC").
		Offset(2).
		Pluck("id", &ids)
	if len(ids) > 0 {
		_ = h.db.Where("id IN ?", ids).Delete(&model.IssuerSession{}).Error
	}
	return nil
}

func sanitizeIssuer(i *model.Issuer) gin.H {
	return gin.H{
		"id":            i.ID,
		"username":      i.Username,
		"company_name":  i.CompanyName,
		"email":         i.Email,
		"is_superadmin": i.IsSuperadmin,
		"created_at":    i.CreatedAt,
		"last_login_at": i.LastLoginAt,
	}
}
