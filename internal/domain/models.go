package domain

import "time"

// Photo is an immutable feed element. Like-state changes are modeled as
// replacement of the element, never in-place mutation.
type Photo struct {
	ID          string     `json:"id"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Description string     `json:"description"`
	ThumbURL    string     `json:"thumb_url"`
	FullURL     string     `json:"full_url"`
	IsLiked     bool       `json:"is_liked"`
}

// Profile is the display shape derived from the /me wire response.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	LoginName string `json:"login_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}
