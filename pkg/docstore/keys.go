package docstore

import "github.com/google/uuid"

// KeyGen produces child keys for Push. Keys must sort in creation order.
type KeyGen func() string

// NewKey returns a UUIDv7, whose string form sorts by creation time.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
