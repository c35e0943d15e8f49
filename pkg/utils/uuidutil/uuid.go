package uuidutil

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// UUID returns a random identifier as plain lowercase hex, no dashes.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
