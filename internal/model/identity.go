package model

import "strings"

// IdentityID uniquely identifies a contestant across the system
type IdentityID string

// ConnID identifies one live connection channel.
// At most one live ConnID exists per identity at any time.
type ConnID string

// Identity represents a contestant. The settlement gateway owns the
// canonical record; Balance here is a cache valid only while online.
type Identity struct {
	ID      IdentityID `json:"id"`
	Name    string     `json:"name"`
	Balance int64      `json:"balance"`
}

// NormalizeName produces the case-insensitive key under which display
// names are held unique among online identities.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
