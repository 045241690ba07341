package internal

import (
	"strings"

	"github.com/google/uuid"
)

// NewRandomID returns a fresh random (version 4) UUID string, 122 bits of
// crypto/rand entropy.
func NewRandomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// JoinToken builds the client-facing token "<recordID><sep><randomID>".
func JoinToken(recordID, randomID, sep string) string {
	return recordID + sep + randomID
}

// SplitToken reverses JoinToken. It fails unless token holds exactly one
// separator with non-empty text on both sides.
func SplitToken(token, sep string) (recordID, randomID string, ok bool) {
	if sep == "" || token == "" {
		return "", "", false
	}
	if strings.Count(token, sep) != 1 {
		return "", "", false
	}
	recordID, randomID, _ = strings.Cut(token, sep)
	if recordID == "" || randomID == "" {
		return "", "", false
	}
	return recordID, randomID, true
}
