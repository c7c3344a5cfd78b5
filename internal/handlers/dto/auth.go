package dto

import "github.com/thereayou/teamchat/internal/models"

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"fullName" binding:"max=100"`
}

type RegisterResponse struct {
	Uid            string `json:"uid"`
	Token          string `json:"token"`
	TokenExpiresAt string `json:"tokenExpiresAt"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token          string       `json:"token"`
	TokenExpiresAt string       `json:"tokenExpiresAt"`
	User           *models.User `json:"user"`
}
