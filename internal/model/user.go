package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	Verified     bool      `json:"verified"`
	Rating       float64   `json:"rating"`
	TotalSales   int       `json:"total_sales"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicProfile is the seller card shown on listing and profile pages.
type PublicProfile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url"`
	Verified   bool      `json:"verified"`
	Rating     float64   `json:"rating"`
	TotalSales int       `json:"total_sales"`
	JoinedAt   time.Time `json:"joined_at"`
}

func (u *User) Public() *PublicProfile {
	return &PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		AvatarURL:  u.AvatarURL,
		Verified:   u.Verified,
		Rating:     u.Rating,
		TotalSales: u.TotalSales,
		JoinedAt:   u.CreatedAt,
	}
}
