package models

import (
	"time"

	"github.com/uptrace/bun"
)

const RoleModerator = "moderator"

// User is the local link to an identity issued by the auth bridge. The ID is
// the token subject.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `bun:",nullzero" json:"username"`
	Email     *string   `json:"email,omitempty"`
	Roles     []string  `bun:"-" json:"roles,omitempty"`
}

// HasRole checks the roles carried by the current token.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
