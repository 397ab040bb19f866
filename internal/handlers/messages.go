package handlers

import (
	"auction-backend/internal/models"
	"auction-backend/internal/relay"
	"auction-backend/internal/services"
	"auction-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// CreateMessageHandler handles POST /api/messages: persist a direct message
// and emit it to both private channels.
func CreateMessageHandler(r *relay.Relay) fiber.Handler {
	return func(c *fiber.Ctx) error {
		senderID := c.Locals("user_id").(string)

		var req models.CreateDirectMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "Invalid request"})
		}
		if req.RecipientID == "" || req.Text == "" {
			return c.Status(400).JSON(fiber.Map{"message": "recipientId and text are required"})
		}

		var auctionID *string
		if req.AuctionID != "" {
			auctionID = &req.AuctionID
		}

		msg, err := r.SendPrivate(c.Context(), senderID, req.RecipientID, auctionID, req.Text)
		if err != nil {
			return JSONError(c, err)
		}
		return c.Status(201).JSON(msg)
	}
}

// GetMessagesHandler handles GET /api/messages?withUserId=&auctionId=
func GetMessagesHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		withUserID := c.Query("withUserId")
		if withUserID == "" {
			return c.Status(400).JSON(fiber.Map{"message": "withUserId is required"})
		}
		var auctionID *string
		if v := c.Query("auctionId"); v != "" {
			auctionID = &v
		}

		msgs, err := messageService.ListBetween(c.Context(), userID, withUserID, auctionID)
		if err != nil {
			utils.LogError(err, "GetMessages")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching messages"})
		}
		return c.JSON(msgs)
	}
}

// ConversationsHandler handles GET /api/messages/conversations?auctionId=
func ConversationsHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		auctionID := c.Query("auctionId")
		if auctionID == "" {
			return c.Status(400).JSON(fiber.Map{"message": "auctionId is required"})
		}

		participants, err := messageService.ConversationsForAuction(c.Context(), auctionID, userID)
		if err != nil {
			utils.LogError(err, "Conversations")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching conversations"})
		}
		return c.JSON(participants)
	}
}

// MyConversationsHandler handles GET /api/messages/my-conversations
func MyConversationsHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		conversations, err := messageService.MyConversations(c.Context(), userID)
		if err != nil {
			utils.LogError(err, "MyConversations")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching my conversations"})
		}
		return c.JSON(conversations)
	}
}

// UnreadCountHandler handles GET /api/messages/unread-count
func UnreadCountHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		count, err := messageService.UnreadCount(c.Context(), userID)
		if err != nil {
			utils.LogError(err, "UnreadCount")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching unread count"})
		}
		return c.JSON(fiber.Map{"unread": count})
	}
}

// MarkReadHandler handles PATCH /api/messages/:id/read. Only the recipient
// or an admin may flip the read flag; the read receipt goes out to both
// private channels.
func MarkReadHandler(r *relay.Relay) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		role, _ := c.Locals("role").(string)

		if err := r.MarkRead(c.Context(), c.Params("id"), userID, role); err != nil {
			return JSONError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Marked read"})
	}
}
