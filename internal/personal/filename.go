package personal

import (
	"crypto/sha256"
	"encoding/hex"
)

const fileSuffix = "_index.vec"

// IndexFileName returns the stable file name of a user's personal index.
// The user ID is hashed so arbitrary IDs cannot escape the index directory.
func IndexFileName(userID string) string {
	hash := sha256.Sum256([]byte(key(userID)))
	return hex.EncodeToString(hash[:16]) + fileSuffix
}
