package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Sub          string `json:"sub"`
	IsSuperadmin bool   `json:"is_superadmin"`
	jwt.RegisteredClaims
}

// SignWithJTI issues an HS256 token carrying a fresh JTI. The JTI is persisted
// as an issuer session row and validated on every authenticated request.
func SignWithJTI(secret, sub string, isSuper bool, ttlSeconds int64) (token string, jti string, err error) {
	now := time.Now()
	jti = uuid.NewString()
	claims := Claims{
		Sub:          sub,
		IsSuperadmin: isSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   sub,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString([]byte(secret))
	return token, jti, err
}

// Parse validates the token signature and returns its claims.
func Parse(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return token.Claims.(*Claims), nil
}
