package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates roles carried in identity-service tokens.
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleStaff UserRole = "STAFF"
)

// JWTClaims are the claims this service reads from bearer tokens issued
// by the identity service. SchoolID scopes every operation to a tenant.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	SchoolID string   `json:"school_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
