package domain

import "time"

// User is an account in the marketplace. This backend never creates or
// mutates users; it only resolves them when verifying credentials and when
// expanding message senders.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserModel is the GORM model for the users table (owned by the account
// service; read-only here).
type UserModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Username  string    `gorm:"type:varchar(50);not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	AvatarURL string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
	}
}

// UserRef is the compact user representation embedded in chat payloads.
type UserRef struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) ToRef() UserRef {
	return UserRef{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}
