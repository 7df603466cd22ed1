package user

import (
	"time"

	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/token"
)

type User struct {
	ID             string     `json:"id" bson:"_id"`
	Name           string     `json:"name" bson:"name"`
	Email          string     `json:"email" bson:"email"`
	Phone          string     `json:"phone,omitempty" bson:"phone,omitempty"`
	PasswordHash   string     `json:"-" bson:"password_hash"`
	Role           string     `json:"role" bson:"role"`
	Status         string     `json:"status" bson:"status"`
	ResetTokenHash string     `json:"-" bson:"reset_token_hash,omitempty"`
	ResetExpiresAt *time.Time `json:"-" bson:"reset_expires_at,omitempty"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty" bson:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
}

type Profile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Status constants
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User   *Profile    `json:"user"`
	Tokens *token.Pair `json:"tokens"`
}

// GetAllUsersRequest represents request for getting all users
type GetAllUsersRequest struct {
	Page   int    `json:"page" form:"page"`
	Limit  int    `json:"limit" form:"limit"`
	Role   string `json:"role" form:"role"`
	Status string `json:"status" form:"status"`
	Search string `json:"search" form:"search"`
}

// GetAllUsersResponse represents response for getting all users
type GetAllUsersResponse struct {
	Users      []*Profile `json:"users"`
	TotalCount int64      `json:"totalCount"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// ToProfile converts User to Profile
func (u *User) ToProfile() *Profile {
	return &Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == models.RoleAdmin
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) clone() *User {
	c := *u
	if u.ResetExpiresAt != nil {
		t := *u.ResetExpiresAt
		c.ResetExpiresAt = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func isValidRole(role string) bool {
	switch role {
	case models.RoleCustomer, models.RoleOwner, models.RoleDriver, models.RoleAdmin:
		return true
	}
	return false
}

// isSelfServiceRole reports whether a role can be chosen at registration.
func isSelfServiceRole(role string) bool {
	return role != models.RoleAdmin && isValidRole(role)
}

func isValidStatus(status string) bool {
	return status == StatusActive || status == StatusSuspended
}
