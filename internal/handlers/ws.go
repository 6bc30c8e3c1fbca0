package handlers

import (
	"log"

	"pingme/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler runs the read loop for one event-channel connection.
// The connection starts Unbound; it is promoted by a setup event, not by
// HTTP credentials, so an unauthenticated socket simply stays Unbound.
func WebSocketHandler(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBufferSize),
		}
		hub.add(c)
		go c.writePump()

		defer func() {
			hub.drop(c)
			conn.Close()
		}()

		for {
			msgType, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("ws read error: %v", err)
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			hub.HandleEvent(c, raw)
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on the ws route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the bearer token (or access_token query param)
// and stores the authenticated identity in Locals.
func AuthMiddleware(c *fiber.Ctx) error {
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	c.Locals("user_id", userID)

	if username, ok := claims["username"].(string); ok {
		c.Locals("username", username)
	}

	return c.Next()
}
