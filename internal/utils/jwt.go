package utils

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

// SessionCookie holds the signed session reference.
const SessionCookie = "session"

const (
	currentUserKey = "current_user"
	sessionIDKey   = "session_id"
)

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a reference to a server-side session. The token
// carries no user data.
func GenerateSessionToken(secret []byte, sessionID uuid.UUID, expiresAt time.Time) (string, error) {
	claims := &Claims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func ValidateSessionToken(secret []byte, tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, err
	}

	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, errors.New("invalid session ID format")
	}
	return sessionID, nil
}

// SetCurrentUser stores the authenticated user on the request.
func SetCurrentUser(c *gin.Context, user *entity.User, sessionID uuid.UUID) {
	c.Set(currentUserKey, user)
	c.Set(sessionIDKey, sessionID)
}

func GetCurrentUser(c *gin.Context) (*entity.User, error) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return nil, errors.New("user not found in context")
	}

	user, ok := v.(*entity.User)
	if !ok {
		return nil, errors.New("user is not of type *entity.User")
	}
	return user, nil
}

func GetSessionID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(sessionIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
