package model

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleBuyer   Role = "buyer"
	RoleCompany Role = "company"
	RoleVendor  Role = "vendor"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type UserPublic struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}

// CurrentUser is the session identity injected into clients (id, display name, avatar).
type CurrentUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}
