package utils

import "github.com/google/uuid"

// GenerateID returns a new identifier of the form "<prefix>-<uuid>".
func GenerateID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
