package redis

import (
	"fmt"

	"github.com/Puci-G/rpsServer/internal/model"
)

// Key prefix for all contest-service data
const keyPrefix = "rps"

// identityKey returns the Redis key for an identity record (id + name)
func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

// balanceKey returns the Redis key holding an identity's balance as an
// integer string, kept separate so settlement scripts can DECRBY/INCRBY
func balanceKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:balance:%s", keyPrefix, id)
}

// nameIndexKey returns the Redis key for the normalized-name -> id index
func nameIndexKey(nameKey string) string {
	return fmt.Sprintf("%s:idx:name:%s", keyPrefix, nameKey)
}

// ledgerKey returns the Redis key for an identity's ledger list
func ledgerKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:ledger:%s", keyPrefix, id)
}
