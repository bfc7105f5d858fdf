package model

import "time"

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account that owns tasks and at most one location
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"size:50;not null"`
	Email     string    `json:"email" gorm:"size:255;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"` // bcrypt hash
	Role      string    `json:"role" gorm:"size:20;default:'user'"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is the profile returned to clients
type UserPublic struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public strips the user down to its public profile
func (u *User) Public() UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserList wraps a page of public profiles
type UserList struct {
	Users []UserPublic `json:"users"`
}

// UserCreate is the registration payload, also used for full updates
type UserCreate struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserPatch holds the optional fields of a partial profile update
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// LoginRequest represents login credentials; username carries the email
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token represents a refreshed access token
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Message is the body returned by delete endpoints
type Message struct {
	Message string `json:"message"`
}
