package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Role values carried in the token's role claim and stored on the user
const (
	RoleClient = "client"
	RoleWorker = "worker"
)

// User represents a marketplace member (client or worker)
type User struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	Auth0ID       string                      `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name          string                      `gorm:"not null" json:"name"`
	Email         string                      `gorm:"uniqueIndex;not null" json:"email"`
	Role          string                      `gorm:"not null;default:'client';index" json:"role"`
	WalletBalance decimal.Decimal             `gorm:"type:decimal(12,2);not null;default:0" json:"wallet_balance"`
	Reputation    float64                     `gorm:"not null;default:0" json:"reputation"`
	CompletedJobs int                         `gorm:"not null;default:0" json:"completed_jobs"`
	Skills        datatypes.JSONSlice[string] `json:"skills"`
	Phone         string                      `gorm:"size:32" json:"phone"`
	Bio           string                      `gorm:"type:text" json:"bio"`
	Location      string                      `json:"location"`
	AvatarRef     string                      `json:"avatar_ref,omitempty"` // image key from the upload endpoint
	AvatarURL     string                      `gorm:"-" json:"avatar_url,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsWorker reports whether the user takes jobs
func (u *User) IsWorker() bool {
	return u.Role == RoleWorker
}

// IsClient reports whether the user posts jobs
func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// HasSkillPrefix reports whether any skill starts with prefix, ignoring case
func (u *User) HasSkillPrefix(prefix string) bool {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	for _, s := range u.Skills {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), prefix) {
			return true
		}
	}
	return false
}

// PublicUser is what other members see of a user: no wallet, email, phone
// or Auth0 identity
type PublicUser struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Reputation    float64  `json:"reputation"`
	CompletedJobs int      `json:"completed_jobs"`
	Skills        []string `json:"skills"`
	Bio           string   `json:"bio,omitempty"`
	Location      string   `json:"location,omitempty"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
}

// Public returns the public view of u, nil for a nil user
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	skills := []string(u.Skills)
	if skills == nil {
		skills = []string{}
	}
	return &PublicUser{
		ID:            u.ID,
		Name:          u.Name,
		Role:          u.Role,
		Reputation:    u.Reputation,
		CompletedJobs: u.CompletedJobs,
		Skills:        skills,
		Bio:           u.Bio,
		Location:      u.Location,
		AvatarURL:     u.AvatarURL,
	}
}

// PublicUsers maps users to their public views
func PublicUsers(users []User) []*PublicUser {
	out := make([]*PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// ValidRole reports whether role is one of the supported roles
func ValidRole(role string) bool {
	return role == RoleClient || role == RoleWorker
}
