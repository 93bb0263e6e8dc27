package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/whisperlink/whisperlink-backend/internal/auth"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

const sessionKey = "whisperlink.session"

// RequireSession verifies the bearer session token and asserts the
// sign-in provider before any handler runs. Handlers reached through
// this middleware can rely on SessionFrom returning a session.
func RequireSession(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			Error(c, svcErr.Unauthenticated("login required"))
			return
		}

		sess, err := m.Verify(token)
		if err != nil {
			Error(c, svcErr.Unauthenticated("login required"))
			return
		}

		if sess.SignInProvider != m.Provider() {
			Error(c, svcErr.PermissionDenied(fmt.Sprintf("login with %s is required", m.Provider())))
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// SessionFrom returns the verified session attached by RequireSession.
func SessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

func extractBearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
