package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// Ключи gin.Context, под которыми лежит текущий пользователь.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

const bearerScheme = "bearer"

// AuthMiddleware пропускает запрос с валидным access токеном и кладёт пользователя в контекст.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	log := logger.WithComponent("auth")

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			entry := log.WithFields(logrus.Fields{"path": c.FullPath(), "ip": c.ClientIP()})
			if err != nil {
				entry = entry.WithField("error", err.Error())
			}
			entry.Debug("auth: токен отклонён")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		SetActor(c, userID, role)
		c.Next()
	}
}

// SetActor сохраняет пользователя запроса в контексте.
func SetActor(c *gin.Context, userID uuid.UUID, role string) {
	c.Set(ContextUserIDKey, userID)
	c.Set(ContextRoleKey, role)
}

// bearerToken достаёт токен из заголовка "Bearer <token>", схема без учёта регистра.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole пропускает только перечисленные роли. Ставится после AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := allowed[c.GetString(ContextRoleKey)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "доступ запрещён"})
			return
		}
		c.Next()
	}
}
