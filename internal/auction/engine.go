package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Bids step in bounded increments above the effective price: at least +1 and
// at most +10. The upper bound is intentional (anti-sniping), not a floor.
const (
	minBidStep = 1
	maxBidStep = 10
)

const maxBidAttempts = 3

// Store is the persistence contract for auction state. AppendBid is
// conditional on the price the caller read: if the auction's current price
// moved in between, it fails with ErrPriceConflict and nothing is applied.
// SetWinner applies only while the winner is unset, making resolution
// idempotent at the store layer.
type Store interface {
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	AppendBid(ctx context.Context, auctionID string, bid models.Bid, prevPrice float64) error
	SetWinner(ctx context.Context, auctionID, winnerID string) (bool, error)
	MarkUnsold(ctx context.Context, auctionID string) error
	ListEndedUnresolved(ctx context.Context, now time.Time) ([]string, error)
}

// NameResolver looks up display names for broadcast payloads.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Publisher is the slice of the broadcaster the engine needs.
type Publisher interface {
	Publish(scope broadcast.Scope, event string, data any)
}

// Engine validates bids against timing and step rules and lazily resolves
// the winner once the auction's end time has passed.
type Engine struct {
	store Store
	pub   Publisher
	names NameResolver
	now   func() time.Time
}

func NewEngine(store Store, pub Publisher, names NameResolver) *Engine {
	return &Engine{store: store, pub: pub, names: names, now: time.Now}
}

// PlaceBid validates and applies one bid. Validation failures never mutate
// state: either the full append-bid-and-update-price sequence commits or
// nothing changes. A lost conditional write re-reads the auction and
// re-validates against the post-write price, so two racing bids can never
// both apply against the same prior price.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*models.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return nil, fmt.Errorf("%w: missing auction or bidder id", apperrors.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		a, err := e.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		now := e.now()
		if !a.HasStarted(now) {
			return nil, apperrors.ErrNotStarted
		}
		if a.HasEnded(now) {
			return nil, apperrors.ErrAlreadyEnded
		}

		base := a.CurrentPrice
		if a.StartingPrice > base {
			base = a.StartingPrice
		}
		minBid := base + minBidStep
		maxBid := base + maxBidStep
		if amount < minBid {
			return nil, fmt.Errorf("%w: bid must be at least %g", apperrors.ErrBidTooLow, minBid)
		}
		if amount > maxBid {
			return nil, fmt.Errorf("%w: bid must be at most %g", apperrors.ErrBidTooHigh, maxBid)
		}

		bid := models.Bid{
			ID:        uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			BidTime:   now,
		}

		if err := e.store.AppendBid(ctx, auctionID, bid, a.CurrentPrice); err != nil {
			if errors.Is(err, apperrors.ErrPriceConflict) {
				lastErr = err
				continue // re-read and re-validate against the new price
			}
			return nil, fmt.Errorf("append bid: %w", err)
		}

		log.WithFields(log.Fields{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"amount":     amount,
		}).Info("bid accepted")

		e.pub.Publish(broadcast.AuctionScope(auctionID), models.EvBidPlaced, models.BidPlacedEvent{
			AuctionID:    auctionID,
			CurrentPrice: amount,
			BidsCount:    len(a.Bids) + 1,
			Bidder:       models.UserRef{ID: bidderID},
		})
		e.pub.Publish(broadcast.GlobalScope, models.EvAuctionUpdated, models.AuctionUpdatedEvent{
			AuctionID:    auctionID,
			CurrentPrice: amount,
		})
		return &bid, nil
	}
	return nil, lastErr
}

// ResolveIfEnded performs the lazy winner resolution transition. Before the
// end time, or once a winner is set, it is a pure read. On the first call
// after expiry it selects the maximum bid — ties broken by earliest bid at
// that amount — assigns the winner, marks the auction sold and broadcasts
// auctionEnded. An auction that ends with no bids is marked unsold without a
// broadcast; its winner stays null indefinitely.
func (e *Engine) ResolveIfEnded(ctx context.Context, auctionID string) (*models.Auction, error) {
	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if !a.HasEnded(e.now()) || a.WinnerID != nil {
		return a, nil
	}

	if len(a.Bids) == 0 {
		if err := e.store.MarkUnsold(ctx, auctionID); err != nil {
			return nil, fmt.Errorf("mark unsold: %w", err)
		}
		a.IsSold = false
		return a, nil
	}

	// Earliest bid at the maximum amount wins: strict > over append order.
	winning := a.Bids[0]
	for _, b := range a.Bids[1:] {
		if b.Amount > winning.Amount {
			winning = b
		}
	}

	applied, err := e.store.SetWinner(ctx, auctionID, winning.BidderID)
	if err != nil {
		return nil, fmt.Errorf("set winner: %w", err)
	}
	if !applied {
		// Another reader resolved first; return the authoritative record.
		return e.store.GetAuction(ctx, auctionID)
	}

	winnerName := winning.BidderName
	if winnerName == "" {
		if n, err := e.names.DisplayName(ctx, winning.BidderID); err == nil {
			winnerName = n
		}
	}

	a.WinnerID = &winning.BidderID
	if winnerName != "" {
		a.WinnerName = &winnerName
	}
	a.IsSold = true

	log.WithFields(log.Fields{
		"auction_id": auctionID,
		"winner_id":  winning.BidderID,
		"amount":     a.CurrentPrice,
	}).Info("auction resolved")

	e.pub.Publish(broadcast.GlobalScope, models.EvAuctionEnded, models.AuctionEndedEvent{
		AuctionID:  auctionID,
		Winner:     models.UserRef{ID: winning.BidderID, Name: winnerName},
		FinalPrice: a.CurrentPrice,
		BidsCount:  len(a.Bids),
	})
	return a, nil
}

// ResolveDue resolves every auction whose end time has passed without a
// recorded resolution. Invoked from the scheduled sweep.
func (e *Engine) ResolveDue(ctx context.Context) {
	ids, err := e.store.ListEndedUnresolved(ctx, e.now())
	if err != nil {
		log.Errorf("list unresolved auctions: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := e.ResolveIfEnded(ctx, id); err != nil {
			log.WithField("auction_id", id).Errorf("sweep resolution failed: %v", err)
		}
	}
}
