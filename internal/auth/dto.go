package auth

import (
	"time"

	"github.com/angelmondragon/buildmart-backend/pkg/enums"
)

// CustomerRegisterRequest onboards a Mart customer.
type CustomerRegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	State    string `json:"state" validate:"required,max=60"`
	City     string `json:"city" validate:"required,max=60"`
	Password string `json:"password" validate:"required"`
}

// VendorRegisterRequest onboards a vendor business.
type VendorRegisterRequest struct {
	VendorID     string `json:"vendorId" validate:"required,max=64"`
	BusinessName string `json:"businessName" validate:"required,max=120"`
	OwnerName    string `json:"ownerName" validate:"omitempty,max=120"`
	Phone        string `json:"phone" validate:"required,min=6,max=20"`
	Password     string `json:"password" validate:"required"`
}

type CustomerLoginRequest struct {
	State    string `json:"state" validate:"required"`
	City     string `json:"city" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VendorLoginRequest struct {
	VendorID string `json:"vendorId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest rotates a refresh token. The access token may be expired.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by every login and refresh.
type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Role         enums.Role `json:"role"`
	Subject      string     `json:"subject"`
	Name         string     `json:"name,omitempty"`
}

// CustomerProfile is stored at Users/{state}/{city}/{phone}/Profile.
type CustomerProfile struct {
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	State        string     `json:"state"`
	City         string     `json:"city"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// VendorProfile is stored at Vendors/{vendorId}/Profile.
type VendorProfile struct {
	BusinessName string     `json:"businessName"`
	OwnerName    string     `json:"ownerName,omitempty"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// AdminProfile is stored at Admins/{username}.
type AdminProfile struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}
