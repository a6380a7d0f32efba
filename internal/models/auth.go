package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs an operation, for authorisation and auditing.
type Actor struct {
	UserID    string
	Role      UserRole
	IP        string
	UserAgent string
}

// IsStaff reports whether the actor is admin or staff.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}
