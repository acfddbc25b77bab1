package directory

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TirthC27/HealthID/pkg/types"
)

// SessionClaims represents the JWT claims structure for portal sessions
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionTokens issues and validates portal session tokens
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewSessionTokens creates a new session token issuer
func NewSessionTokens(secret string, ttl time.Duration, issuer string) *SessionTokens {
	return &SessionTokens{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}
}

// Issue generates a signed session token for the user
func (st *SessionTokens) Issue(user *types.User) (*types.AuthToken, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    st.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(st.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(st.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &types.AuthToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(st.ttl.Seconds()),
		IssuedAt:    now,
	}, nil
}

// Validate parses a session token and returns the user claims
func (st *SessionTokens) Validate(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return st.secret, nil
	})
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Invalid session token")
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Invalid session token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Session token expired")
	}

	return &types.UserClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   types.UserRole(claims.Role),
	}, nil
}
