package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "caller"

// GenerateToken выпускает токен, идентифицирующий drive.
func GenerateToken(secret string, drive models.Drive, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"drive": drive.ID,
		"title": drive.Title,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func validateJWT(secret, tokenString string) (models.Drive, error) {
	if tokenString == "" {
		return models.Drive{}, errors.New("empty token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Drive{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Drive{}, errors.New("invalid token claims")
	}
	id, _ := claims["drive"].(string)
	if id == "" {
		return models.Drive{}, errors.New("token has no drive claim")
	}
	title, _ := claims["title"].(string)
	return models.Drive{ID: id, Title: title}, nil
}

// identify определяет вызывающего по заголовку Authorization.
// Запрос без токена анонимен, запрос с неверным токеном отклоняется.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || s.cfg.Server.JWTSecret == "" {
			c.Set(callerKey, models.Drive{})
			c.Next()
			return
		}
		drive, err := validateJWT(s.cfg.Server.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(callerKey, drive)
		c.Next()
	}
}

func callerOf(c *gin.Context) models.Drive {
	d, _ := c.MustGet(callerKey).(models.Drive)
	return d
}
