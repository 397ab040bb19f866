package handlers

import (
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"
	"auction-backend/internal/registry"
	"auction-backend/internal/relay"
	"auction-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Realtime bundles the components the websocket endpoint drives.
type Realtime struct {
	Registry    *registry.Registry
	Broadcaster *broadcast.Broadcaster
	Relay       *relay.Relay
}

// WebSocketHandler runs the per-connection read loop. Every connection is
// subscribed to the global scope at connect time so it receives
// auction-wide updates; room, auction and private scopes are joined through
// events.
func WebSocketHandler(rt *Realtime) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID := c.Locals("user_id").(string)
		userName, _ := c.Locals("name").(string)
		userRole, _ := c.Locals("role").(string)

		connID := uuid.New().String()
		conn := broadcast.NewWSConn(c)
		rt.Broadcaster.Subscribe(broadcast.GlobalScope, connID, conn)

		defer func() {
			rt.Registry.Disconnect(userID, userName)
			rt.Broadcaster.Drop(connID)
			c.Close()
		}()

		conn.WriteJSON(models.ServerEvent{Event: models.EvConnected})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warnf("websocket read: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}
			rt.HandleEvent(conn, connID, userID, userName, userRole, msg)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT before the request proceeds. The token is
// taken from the access_token query param, the Authorization header, or the
// auth_token cookie.
func AuthMiddleware(c *fiber.Ctx) error {
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		token = c.Cookies("auth_token")
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	c.Locals("user_id", uid)

	if name, ok := claims["name"].(string); ok {
		c.Locals("name", name)
	}
	if role, ok := claims["role"].(string); ok {
		c.Locals("role", role)
	}

	return c.Next()
}
