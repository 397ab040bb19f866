package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/db"
	"auction-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionService is the pgx-backed implementation of the engine's Store.
// The auction's authoritative state lives in the database; bid application
// uses a row lock plus a conditional price check so two racing bids are
// serialized by the store, not by process memory.
type AuctionService struct{}

func NewAuctionService() *AuctionService {
	return &AuctionService{}
}

func (s *AuctionService) CreateAuction(ctx context.Context, a *models.Auction) error {
	a.ID = uuid.New().String()
	a.CurrentPrice = a.StartingPrice
	query := `INSERT INTO auctions
		(id, seller_id, title, description, category, photo_url, starting_price, current_price, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`
	return db.Pool.QueryRow(ctx, query,
		a.ID, a.SellerID, a.Title, a.Description, a.Category, a.PhotoURL,
		a.StartingPrice, a.CurrentPrice, a.StartTime, a.EndTime,
	).Scan(&a.CreatedAt)
}

func (s *AuctionService) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	var a models.Auction
	query := `SELECT a.id, a.seller_id, su.name, a.title, a.description, a.category, a.photo_url,
			a.starting_price, a.current_price, a.start_time, a.end_time,
			a.winner_id, wu.name, a.is_sold, a.created_at
		FROM auctions a
		JOIN users su ON su.id = a.seller_id
		LEFT JOIN users wu ON wu.id = a.winner_id
		WHERE a.id = $1`
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.SellerID, &a.SellerName, &a.Title, &a.Description, &a.Category, &a.PhotoURL,
		&a.StartingPrice, &a.CurrentPrice, &a.StartTime, &a.EndTime,
		&a.WinnerID, &a.WinnerName, &a.IsSold, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// Bids in append order; the resolution tie-break depends on it.
	rows, err := db.Pool.Query(ctx, `SELECT b.id, b.auction_id, b.bidder_id, u.name, b.amount, b.bid_time
		FROM bids b JOIN users u ON u.id = b.bidder_id
		WHERE b.auction_id = $1 ORDER BY b.seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.BidTime); err != nil {
			return nil, err
		}
		a.Bids = append(a.Bids, b)
	}
	return &a, rows.Err()
}

// AppendBid applies one bid atomically: the auction row is locked, the price
// the caller validated against is re-checked, and only then are the bid row
// and the new current price written. A moved price aborts with
// ErrPriceConflict and no partial state.
func (s *AuctionService) AppendBid(ctx context.Context, auctionID string, bid models.Bid, prevPrice float64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current float64
	err = tx.QueryRow(ctx, `SELECT current_price FROM auctions WHERE id = $1 FOR UPDATE`, auctionID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if current != prevPrice {
		return apperrors.ErrPriceConflict
	}

	_, err = tx.Exec(ctx, `INSERT INTO bids (id, auction_id, bidder_id, amount, bid_time)
		VALUES ($1, $2, $3, $4, $5)`, bid.ID, auctionID, bid.BidderID, bid.Amount, bid.BidTime)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE auctions SET current_price = $1 WHERE id = $2`, bid.Amount, auctionID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetWinner assigns the winner only while it is unset. The boolean result
// reports whether this call performed the assignment.
func (s *AuctionService) SetWinner(ctx context.Context, auctionID, winnerID string) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE auctions SET winner_id = $2, is_sold = TRUE, resolved = TRUE
		WHERE id = $1 AND winner_id IS NULL`, auctionID, winnerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkUnsold records the resolution of a zero-bid auction.
func (s *AuctionService) MarkUnsold(ctx context.Context, auctionID string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE auctions SET is_sold = FALSE, resolved = TRUE WHERE id = $1 AND winner_id IS NULL`,
		auctionID)
	return err
}

// ListEndedUnresolved feeds the scheduled resolution sweep.
func (s *AuctionService) ListEndedUnresolved(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id FROM auctions WHERE end_time <= $1 AND NOT resolved`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAuctions returns active/future auctions by default, or only ended ones
// when includeEnded is set, newest first.
func (s *AuctionService) ListAuctions(ctx context.Context, includeEnded bool) ([]models.AuctionSummary, error) {
	cmp := ">"
	if includeEnded {
		cmp = "<="
	}
	query := fmt.Sprintf(`SELECT a.id, a.title, a.description, a.category, a.photo_url,
			a.current_price, a.start_time, a.end_time, su.name,
			a.winner_id, wu.name, a.is_sold,
			(SELECT COUNT(*) FROM bids b WHERE b.auction_id = a.id)
		FROM auctions a
		JOIN users su ON su.id = a.seller_id
		LEFT JOIN users wu ON wu.id = a.winner_id
		WHERE a.end_time %s now()
		ORDER BY a.created_at DESC`, cmp)

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// ListBySeller returns the seller's own auctions, newest first.
func (s *AuctionService) ListBySeller(ctx context.Context, sellerID string) ([]models.AuctionSummary, error) {
	rows, err := db.Pool.Query(ctx, `SELECT a.id, a.title, a.description, a.category, a.photo_url,
			a.current_price, a.start_time, a.end_time, su.name,
			a.winner_id, wu.name, a.is_sold,
			(SELECT COUNT(*) FROM bids b WHERE b.auction_id = a.id)
		FROM auctions a
		JOIN users su ON su.id = a.seller_id
		LEFT JOIN users wu ON wu.id = a.winner_id
		WHERE a.seller_id = $1
		ORDER BY a.created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]models.AuctionSummary, error) {
	now := time.Now()
	summaries := []models.AuctionSummary{}
	for rows.Next() {
		var sm models.AuctionSummary
		var winnerID, winnerName *string
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Description, &sm.Category, &sm.PhotoURL,
			&sm.CurrentPrice, &sm.StartTime, &sm.EndTime, &sm.SellerName,
			&winnerID, &winnerName, &sm.IsSold, &sm.BidsCount); err != nil {
			return nil, err
		}
		if left := sm.EndTime.Sub(now); left > 0 {
			sm.TimeLeftMS = left.Milliseconds()
		}
		sm.HasStarted = !sm.StartTime.After(now)
		sm.HasEnded = !sm.EndTime.After(now)
		if winnerID != nil {
			w := models.UserRef{ID: *winnerID}
			if winnerName != nil {
				w.Name = *winnerName
			}
			sm.Winner = &w
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}
