package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// HashSecret returns the hex SHA-256 digest stored in place of a join secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func VerifySecret(secret, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(hash)) == 1
}

// GenerateRoomID returns a short id that is easy to read out loud.
func GenerateRoomID() string {
	sum := sha256.Sum256([]byte(uuid.New().String()))
	return hex.EncodeToString(sum[:3])
}

func GenerateJoinSecret() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
