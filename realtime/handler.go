package realtime

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserResolver finds the profile behind an authenticated request
type UserResolver func(ctx context.Context, auth0ID string) (*models.User, error)

// Handler upgrades an authenticated request to a WebSocket subscribed to the
// caller's job events. subject returns the caller's Auth0 ID.
func Handler(hub *Hub, subject func(*gin.Context) (string, bool), resolve UserResolver, allowedOrigins []string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, ok := subject(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "User not authenticated"},
			})
			return
		}

		user, err := resolve(c.Request.Context(), auth0ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "USER_NOT_FOUND", "message": "User profile not found. Please create a profile first."},
			})
			return
		}

		opts := &ws.AcceptOptions{OriginPatterns: allowedOrigins}
		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			opts = &ws.AcceptOptions{InsecureSkipVerify: true}
		}

		conn, err := ws.Accept(rawWriter(c.Writer), c.Request, opts)
		if err != nil {
			log.WithError(err).Warn("WebSocket accept failed")
			return
		}

		log.WithField("user_id", user.ID).Info("Realtime client connected")
		NewClient(hub, conn, user.ID, user.Role).Run(c.Request.Context())
		log.WithField("user_id", user.ID).Info("Realtime client disconnected")
	}
}

// rawWriter returns the net/http writer under gin's. gin refuses to hijack
// once headers are flushed, which the handshake does before hijacking.
func rawWriter(w gin.ResponseWriter) http.ResponseWriter {
	if u, ok := w.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return w
}
