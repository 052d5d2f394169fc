package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	"github.com/Sam-arojo/Protrust/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

type IssuerClaims struct {
	Sub          string `json:"sub"`
	IsSuperadmin bool   `json:"is_superadmin"`
	jwt.RegisteredClaims
}

const CtxIssuerID = "issuer_id"
const CtxIsSuper = "is_super"
const CtxJTI = "jti"

func RequireAuth(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		hdr := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			tokenStr = strings.TrimSpace(hdr[7:])
		}
		if tokenStr == "" && cookieName != "" {
			if ck, err := c.Cookie(cookieName); err == nil {
				tokenStr = ck
			}
		}
		if tokenStr == "" {
			basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing token")
			c.Abort()
			return
		}
		token, err := jwt.ParseWithClaims(tokenStr, &IssuerClaims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			c.Abort()
			return
		}
		claims := token.Claims.(*IssuerClaims)
		c.Set(CtxIssuerID, claims.Sub)
		c.Set(CtxIsSuper, claims.IsSuperadmin)
		c.Set(CtxJTI, claims.ID)
		c.Next()
	}
}

// ValidateSession rejects tokens whose JTI no longer has a live session row,
// so logout and session pruning take effect immediately.
func ValidateSession(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		jti, _ := c.Get(CtxJTI)
		jtiStr, _ := jti.(string)
		if jtiStr == "" {
			basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
			c.Abort()
			return
		}
		var count int64
		db.Model(&model.IssuerSession{}).
			Where("jti = ? AND expires_at > ? AND deleted_at IS NULL", jtiStr, time.Now()).
			Count(&count)
		if count == 0 {
			basichttp.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "session expired")
			c.Abort()
			return
		}
		c.Next()
	}
}

func IssuerID(c *gin.Context) string {
	v, ok := c.Get(CtxIssuerID)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, Accept, Origin")
		c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS,HEAD")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Rate limiting
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimitStore struct {
	visitors map[string]*visitor
	mu       sync.Mutex
}

func (s *rateLimitStore) addVisitor(ip string, r rate.Limit, b int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		s.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (s *rateLimitStore) cleanup() {
	for {
		time.Sleep(time.Minute)
		s.mu.Lock()
		for ip, v := range s.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(s.visitors, ip)
			}
		}
		s.mu.Unlock()
	}
}

var store = &rateLimitStore{
	visitors: make(map[string]*visitor),
}

func init() {
	go store.cleanup()
}

// RateLimit applies a per-IP token bucket. The public verification endpoint
// runs behind this; batch generation routes already sit behind auth.
func RateLimit(rps int, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := store.addVisitor(c.ClientIP(), rate.Limit(rps), burst)
		if !limiter.Allow() {
			basichttp.Fail(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
