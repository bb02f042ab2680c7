package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	RoomIDLength  = 4
	roomIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRoomID - generates a short human-shareable room code.
func GenerateRoomID() (string, error) {
	var builder strings.Builder
	builder.Grow(RoomIDLength)

	limit := big.NewInt(int64(len(roomIDCharset)))
	for i := 0; i < RoomIDLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random index: %w", err)
		}

		builder.WriteByte(roomIDCharset[n.Int64()])
	}

	return builder.String(), nil
}

// NormalizeRoomID - trims and upper-cases user input before any lookup.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(roomIDCharset, rune(id[i])) {
			return false
		}
	}

	return true
}

// GenerateMessageID - generates a unique identifier for a chat message.
func GenerateMessageID() string {
	return uuid.NewString()
}
