package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user's role within the back office
type RoleType string

const (
	RoleCustomer  RoleType = "customer"  // Regular customer of the agency
	RoleAdmin     RoleType = "admin"     // Full access to the back office
	RoleModerator RoleType = "moderator" // Can manage content (blogs, gallery, messages)
	RoleEmployee  RoleType = "employee"  // Can manage bookings, visas, and invoices
)

// ValidRole reports whether role is one of the closed role enum values.
func ValidRole(role RoleType) bool {
	switch role {
	case RoleCustomer, RoleAdmin, RoleModerator, RoleEmployee:
		return true
	}
	return false
}

// RefreshTokenRecord is a single refresh token owned by exactly one user.
// TokenID, not the encoded token, is the rotation key; the full token is
// kept alongside it for audit and debugging.
type RefreshTokenRecord struct {
	TokenID   string    `bson:"tokenId" json:"tokenId"`
	Token     string    `bson:"token" json:"-"`
	IsUsed    bool      `bson:"isUsed" json:"isUsed"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the record's absolute expiry has passed.
func (r RefreshTokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

type User struct {
	ID            string               `bson:"_id" json:"id"`                  // Unique identifier for the user
	Email         string               `bson:"email" json:"email"`             // User's email address, case-folded, unique
	PasswordHash  string               `bson:"passwordHash" json:"-"`          // Hashed version of the user's password - never serialize
	Role          RoleType             `bson:"role" json:"role"`               // Single role from the closed enum
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`     // When the user registered
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`     // Last-activity proxy: bumped on login and refresh
	RefreshTokens []RefreshTokenRecord `bson:"refreshTokens" json:"-"`         // Owned, ordered token store
}

// NormalizeEmail case-folds and trims an email for unique comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindRefreshToken returns the record with the given tokenId, or nil.
func (u *User) FindRefreshToken(tokenID string) *RefreshTokenRecord {
	for i := range u.RefreshTokens {
		if u.RefreshTokens[i].TokenID == tokenID {
			return &u.RefreshTokens[i]
		}
	}
	return nil
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
