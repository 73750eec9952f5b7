package models

import "time"

// Role is the access level carried in a user's session token.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a staff account. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password"`
	Name         *string   `json:"name" bson:"name,omitempty"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// SingleUser is the profile returned to the signed-in user.
type SingleUser struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name"`
	Role     Role    `json:"role"`
}

func (u User) Profile() SingleUser {
	return SingleUser{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// DisplayName falls back to the username when no name was given.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Username
}
