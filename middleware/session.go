package middleware

import (
	"Quizrace/services/fraud"
	"Quizrace/utils/logger"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	DeviceHeader  = "X-Device-Fingerprint"

	sessionKey  = "SessionID"
	identityKey = "identity"
)

// Identity resolves the session id and device fingerprint of the caller.
// Browsers get the session id from the cookie session, created on first
// use; API clients may send it in X-Session-ID instead.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := fraud.Identity{
			SessionID:         strings.TrimSpace(c.GetHeader(SessionHeader)),
			DeviceFingerprint: strings.TrimSpace(c.GetHeader(DeviceHeader)),
		}
		if id.SessionID == "" {
			session := sessions.Default(c)
			if v, ok := session.Get(sessionKey).(string); ok && v != "" {
				id.SessionID = v
			} else {
				id.SessionID = uuid.NewString()
				session.Set(sessionKey, id.SessionID)
				if err := session.Save(); err != nil {
					logger.Errorf("[SESSION-ERROR] Error saving session: %v", err)
				}
			}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// GetIdentity returns what Identity stored on the context.
func GetIdentity(c *gin.Context) fraud.Identity {
	if v, ok := c.Get(identityKey); ok {
		return v.(fraud.Identity)
	}
	return fraud.Identity{}
}
