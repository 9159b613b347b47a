package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// APIKey stores the hashed personal API key of a user. The raw key is only
// ever returned once, when it is issued.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Hash       string     `gorm:"type:char(64);index;default:''" json:"-"`
	Prefix     string     `gorm:"type:varchar(20);default:''" json:"prefix"`
	CreatedAt  *time.Time `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// APIKeyPrefix marks raw keys so bearer tokens can be told apart from JWTs.
const APIKeyPrefix = "cp_"

// IsActive reports whether the key can authenticate requests
func (k *APIKey) IsActive() bool {
	return k != nil && k.Hash != "" && k.RevokedAt == nil
}

// Issue generates a new key, stores its metadata on the struct, and returns the raw secret.
// Callers must persist the struct afterwards.
func (k *APIKey) Issue(now time.Time) (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	k.Hash = hash
	k.Prefix = prefix
	k.CreatedAt = &now
	k.RevokedAt = nil
	k.LastUsedAt = nil
	return rawKey, nil
}

// Revoke clears the key material without deleting the record.
func (k *APIKey) Revoke(now time.Time) {
	k.Hash = ""
	k.Prefix = ""
	k.RevokedAt = &now
	k.LastUsedAt = nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey is a cheap format check used by the auth middleware.
func LooksLikeAPIKey(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), APIKeyPrefix)
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	rawKey := APIKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 12)]
	return rawKey, prefix, HashAPIKey(rawKey), nil
}
