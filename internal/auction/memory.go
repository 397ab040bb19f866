package auction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/models"
)

// MemoryStore is a concurrency-safe in-memory implementation of Store. It
// honors the same conditional-write contracts as the SQL store and backs the
// engine tests.
type MemoryStore struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	resolved map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*models.Auction),
		resolved: make(map[string]bool),
	}
}

// AddAuction seeds an auction record.
func (s *MemoryStore) AddAuction(a *models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CurrentPrice == 0 {
		a.CurrentPrice = a.StartingPrice
	}
	s.auctions[a.ID] = a
}

func (s *MemoryStore) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}
	cp := *a
	cp.Bids = append([]models.Bid(nil), a.Bids...)
	return &cp, nil
}

func (s *MemoryStore) AppendBid(ctx context.Context, auctionID string, bid models.Bid, prevPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}
	if a.CurrentPrice != prevPrice {
		return apperrors.ErrPriceConflict
	}
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = bid.Amount
	return nil
}

func (s *MemoryStore) SetWinner(ctx context.Context, auctionID, winnerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return false, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}
	if a.WinnerID != nil {
		return false, nil
	}
	a.WinnerID = &winnerID
	a.IsSold = true
	s.resolved[auctionID] = true
	return true, nil
}

func (s *MemoryStore) MarkUnsold(ctx context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}
	a.IsSold = false
	s.resolved[auctionID] = true
	return nil
}

func (s *MemoryStore) ListEndedUnresolved(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, a := range s.auctions {
		if a.HasEnded(now) && !s.resolved[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
