package models

import "time"

// Preferences are the account toggles shown on the account page.
type Preferences struct {
	Notifications bool `json:"notifications"`
	AutoCompound  bool `json:"autoCompound"`
}

// User captures the profile document stored under users/{id}.
type User struct {
	ID            string      `json:"id"`
	DisplayName   string      `json:"displayName"`
	Email         string      `json:"email"`
	WalletAddress string      `json:"walletAddress"`
	Preferences   Preferences `json:"preferences"`
	Version       int64       `json:"version"`
	PasswordHash  string      `json:"-"`
	JoinedAt      time.Time   `json:"joinedAt"`
}
