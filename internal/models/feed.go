package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaderboardEntry is a points ranking row. Rank is assigned after sorting.
type LeaderboardEntry struct {
	UserID      string          `json:"userId"`
	Score       decimal.Decimal `json:"score"`
	DisplayName string          `json:"displayName,omitempty"`
	Wallet      string          `json:"wallet,omitempty"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
	Rank        int             `json:"rank"`
}

// AnnouncementType tags how an announcement is styled.
type AnnouncementType string

const (
	AnnouncementInfo    AnnouncementType = "info"
	AnnouncementWarning AnnouncementType = "warning"
	AnnouncementSuccess AnnouncementType = "success"
)

// Announcement is a dashboard notice.
type Announcement struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Content string           `json:"content"`
	Type    AnnouncementType `json:"type"`
	At      time.Time        `json:"timestamp"`
}

// InterestSubmission is a row from the public interest form.
type InterestSubmission struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	WalletAddress string    `json:"walletAddress"`
	SubmittedAt   time.Time `json:"timestamp"`
}
