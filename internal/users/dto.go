package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// UserDTO is a user as the API shows it: no password hash, no update stamp.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToDTO returns nil for a nil user.
func ToDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	return &dto
}

// NewUser is an account about to be stored. Email must already be
// normalized and the password hashed.
type NewUser struct {
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	Role         enums.UserRole
}

// New accounts start active.
func (n NewUser) model() *models.User {
	return &models.User{
		Name:         n.Name,
		Email:        n.Email,
		Phone:        n.Phone,
		PasswordHash: n.PasswordHash,
		Role:         n.Role,
		IsActive:     true,
	}
}
