package user

import "github.com/google/uuid"

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
