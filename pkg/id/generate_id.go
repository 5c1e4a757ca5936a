// Package id mints row ids for ledger events and asset transfers.
package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns a UUIDv7 as 32 lowercase hex characters. Ids minted by one
// process sort in creation order, which keeps same-timestamp journal rows in
// the order they were written.
func NewID32() string {
	u := uuid.Must(uuid.NewV7())
	return hex.EncodeToString(u[:])
}
