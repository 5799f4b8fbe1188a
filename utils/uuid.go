package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// IsValidID reports whether id has the shape of an identifier produced by GenerateID
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// DeriveID returns a stable identifier for the given parts; equal parts always give the same ID
func DeriveID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "/"))).String()
}
