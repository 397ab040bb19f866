package models

import "time"

// Auction represents a time-boxed listing. CurrentPrice always equals the
// highest accepted bid, or StartingPrice when no bid has been accepted yet.
type Auction struct {
	ID            string     `json:"id"`
	SellerID      string     `json:"sellerId"`
	SellerName    string     `json:"sellerName,omitempty"`
	Title         string     `json:"itemName"`
	Description   string     `json:"itemDescription"`
	Category      string     `json:"itemCategory"`
	PhotoURL      string     `json:"itemPhoto,omitempty"`
	StartingPrice float64    `json:"startingPrice"`
	CurrentPrice  float64    `json:"currentPrice"`
	StartTime     time.Time  `json:"itemStartDate"`
	EndTime       time.Time  `json:"itemEndDate"`
	Bids          []Bid      `json:"bids,omitempty"`
	WinnerID      *string    `json:"winnerId,omitempty"`
	WinnerName    *string    `json:"winnerName,omitempty"`
	IsSold        bool       `json:"isSold"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Bid is immutable once appended to its auction.
type Bid struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auctionId"`
	BidderID   string    `json:"bidderId"`
	BidderName string    `json:"bidderName,omitempty"`
	Amount     float64   `json:"amount"`
	BidTime    time.Time `json:"bidTime"`
}

// HasStarted reports whether the auction window has opened at the given instant.
func (a *Auction) HasStarted(now time.Time) bool {
	return !a.StartTime.After(now)
}

// HasEnded reports whether the auction window has closed at the given instant.
func (a *Auction) HasEnded(now time.Time) bool {
	return !a.EndTime.After(now)
}

// AuctionSummary is the list-view shape returned by the listing endpoints.
type AuctionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"itemName"`
	Description  string    `json:"itemDescription"`
	CurrentPrice float64   `json:"currentPrice"`
	BidsCount    int       `json:"bidsCount"`
	TimeLeftMS   int64     `json:"timeLeft"`
	Category     string    `json:"itemCategory"`
	SellerName   string    `json:"sellerName"`
	PhotoURL     string    `json:"itemPhoto,omitempty"`
	StartTime    time.Time `json:"itemStartDate"`
	EndTime      time.Time `json:"itemEndDate"`
	HasStarted   bool      `json:"hasStarted"`
	HasEnded     bool      `json:"hasEnded"`
	Winner       *UserRef  `json:"winner,omitempty"`
	IsSold       bool      `json:"isSold"`
}

// UserRef is a minimal user reference embedded in payloads.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type CreateAuctionRequest struct {
	Title         string  `json:"itemName"`
	Description   string  `json:"itemDescription"`
	Category      string  `json:"itemCategory"`
	PhotoURL      string  `json:"itemPhoto"`
	StartingPrice float64 `json:"startingPrice"`
	StartDate     string  `json:"itemStartDate"`
	EndDate       string  `json:"itemEndDate"`
}

type PlaceBidRequest struct {
	Amount float64 `json:"bidAmount"`
}
