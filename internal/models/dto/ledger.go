package dto

type DepositRequest struct {
	Amount  string `json:"amount"`
	Term    string `json:"term"`
	VaultID string `json:"vaultId,omitempty"`
}

type WithdrawRequest struct {
	Amount  string `json:"amount"`
	VaultID string `json:"vaultId,omitempty"`
}

type CreditRequest struct {
	Amount string `json:"amount"`
}

type PositionRequest struct {
	Amount string `json:"amount"`
}

type ConversionResponse struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Converted string `json:"converted"`
	Display   string `json:"display"`
}

type RewardResponse struct {
	Amount          string `json:"amount"`
	Term            string `json:"term"`
	EstimatedReward string `json:"estimatedReward"`
}
