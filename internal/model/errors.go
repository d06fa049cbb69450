package model

import "errors"

// Common errors used across the application
var (
	// Login / directory errors
	ErrNameRequired     = errors.New("name required")
	ErrNameTaken        = errors.New("name already taken")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrNotResumable     = errors.New("identity logged out, login required")

	// Queue errors
	ErrAlreadyQueued     = errors.New("already in queue")
	ErrAlreadyInSession  = errors.New("already in a session")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotConnected      = errors.New("connection not registered")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrRoundNotActive  = errors.New("no round is active")
	ErrInvalidChoice   = errors.New("invalid choice")
)
