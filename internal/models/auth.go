package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Admin is an operator allowed to manage the roster and read attendance.
type Admin struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// LoginRequest holds credentials for authenticating an admin.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresIn int64     `json:"expiresIn"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// AdminInfo describes the authenticated admin in responses.
type AdminInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// JWTClaims represents the JWT payload for admin tokens.
type JWTClaims struct {
	AdminID  string `json:"adminId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
