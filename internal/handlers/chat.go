package handlers

import (
	"strconv"

	"auction-backend/internal/services"
	"auction-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const historyLimit = 50

// RoomHistoryHandler handles GET /chat/room/:roomId — the history load and
// the client's polling fallback. Room ids are the fixed set {0..3} plus any
// dynamically created non-negative id.
func RoomHistoryHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roomID, err := strconv.Atoi(c.Params("roomId"))
		if err != nil || roomID < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid room ID"})
		}

		messages, err := chatService.GetMessagesByRoom(c.Context(), roomID, historyLimit)
		if err != nil {
			utils.LogError(err, "RoomHistory")
			return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch messages"})
		}
		return c.JSON(messages)
	}
}
