package dto

import "github.com/hongminglow/vault-be/internal/models"

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}
