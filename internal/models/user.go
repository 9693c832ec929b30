// internal/models/user.go
package models

import "github.com/google/uuid"

// User is the caller identity resolved by the authentication collaborator before any engine call.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
