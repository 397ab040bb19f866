package handlers

import (
	"strings"
	"time"

	"auction-backend/internal/auction"
	"auction-backend/internal/models"
	"auction-backend/internal/services"
	"auction-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// CreateAuctionHandler handles POST /api/auctions
func CreateAuctionHandler(auctionService *services.AuctionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sellerID := c.Locals("user_id").(string)

		var req models.CreateAuctionRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "Invalid request"})
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.Status(400).JSON(fiber.Map{"message": "itemName is required"})
		}
		if req.StartingPrice <= 0 {
			return c.Status(400).JSON(fiber.Map{"message": "startingPrice must be positive"})
		}

		start := time.Now()
		if req.StartDate != "" {
			parsed, err := time.Parse(time.RFC3339, req.StartDate)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"message": "invalid itemStartDate"})
			}
			start = parsed
		}
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "invalid itemEndDate"})
		}
		if !end.After(start) {
			return c.Status(400).JSON(fiber.Map{"message": "Auction end date must be after start date"})
		}

		a := &models.Auction{
			SellerID:      sellerID,
			Title:         req.Title,
			Description:   req.Description,
			Category:      req.Category,
			PhotoURL:      req.PhotoURL,
			StartingPrice: req.StartingPrice,
			StartTime:     start,
			EndTime:       end,
		}
		if err := auctionService.CreateAuction(c.Context(), a); err != nil {
			utils.LogError(err, "CreateAuction")
			return c.Status(500).JSON(fiber.Map{"message": "Error creating auction"})
		}
		return c.Status(201).JSON(fiber.Map{"message": "Auction created successfully", "newAuction": a})
	}
}

// ListAuctionsHandler handles GET /api/auctions. By default it returns
// auctions that have not yet ended; includeEnded=true returns only ended
// ones.
func ListAuctionsHandler(auctionService *services.AuctionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		includeEnded := c.Query("includeEnded") == "true"
		summaries, err := auctionService.ListAuctions(c.Context(), includeEnded)
		if err != nil {
			utils.LogError(err, "ListAuctions")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching auctions"})
		}
		return c.JSON(summaries)
	}
}

// MyAuctionsHandler handles GET /api/auctions/mine
func MyAuctionsHandler(auctionService *services.AuctionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sellerID := c.Locals("user_id").(string)
		summaries, err := auctionService.ListBySeller(c.Context(), sellerID)
		if err != nil {
			utils.LogError(err, "MyAuctions")
			return c.Status(500).JSON(fiber.Map{"message": "Error fetching auctions"})
		}
		return c.JSON(summaries)
	}
}

// GetAuctionHandler handles GET /api/auctions/:id. Fetching an auction is a
// resolution extension point: the first read after the end time assigns the
// winner.
func GetAuctionHandler(engine *auction.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := engine.ResolveIfEnded(c.Context(), c.Params("id"))
		if err != nil {
			return JSONError(c, err)
		}
		return c.JSON(a)
	}
}

// PlaceBidHandler handles POST /api/auctions/:id/bid. Rejections carry the
// precise reason, including the current minimum and maximum bid bounds.
func PlaceBidHandler(engine *auction.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bidderID := c.Locals("user_id").(string)

		var req models.PlaceBidRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "Invalid request"})
		}

		if _, err := engine.PlaceBid(c.Context(), c.Params("id"), bidderID, req.Amount); err != nil {
			return JSONError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Bid placed successfully"})
	}
}
