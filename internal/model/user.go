package model

import "time"

// Tier is a watcher's priority class. Staff outranks premium outranks standard;
// the tier drives both recipient narrowing and cooldown re-arm speed.
type Tier string

const (
	TierStaff    Tier = "staff"
	TierPremium  Tier = "premium"
	TierStandard Tier = "standard"
)

// User is an account that can watch sections.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tier derives the user's watcher tier from the account flags.
func (u User) Tier() Tier {
	switch {
	case u.IsStaff:
		return TierStaff
	case u.IsPremium:
		return TierPremium
	default:
		return TierStandard
	}
}

// Watcher is the read-only projection of a user that the monitoring engine
// consumes: a contact address and a tier, nothing else.
type Watcher struct {
	Email string
	Tier  Tier
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
