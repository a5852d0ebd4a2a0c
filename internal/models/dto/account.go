package dto

import "github.com/hongminglow/vault-be/internal/models"

type UpdateProfileRequest struct {
	DisplayName   string             `json:"displayName"`
	WalletAddress string             `json:"walletAddress"`
	Preferences   models.Preferences `json:"preferences"`
	Version       int64              `json:"version"`
}

// UpdatePreferencesRequest leaves a toggle untouched when its field is omitted.
type UpdatePreferencesRequest struct {
	Notifications *bool `json:"notifications"`
	AutoCompound  *bool `json:"autoCompound"`
}

type InterestRequest struct {
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress"`
}
