package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a host system credential for calling this service.
// Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	KeyHash    string     `json:"key_hash" db:"key_hash"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// CreateAPIKeyRequest represents the request to issue a new API key
type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// APIKeyResponse carries a freshly issued key. The plaintext key appears
// here once and is never retrievable again.
type APIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}
