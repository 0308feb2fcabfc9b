package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the payload of a grid session bearer token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}
