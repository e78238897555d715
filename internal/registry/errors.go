package registry

import "errors"

// Typed failures returned by the instruction decoder and the processor.
// Host-side failures (allocation, transfer) are wrapped and returned as-is.
var (
	ErrInvalidInstruction = errors.New("invalid instruction data")
	ErrInvalidPda         = errors.New("invalid derived address")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStringTooLong      = errors.New("string too long")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrInvalidAccountData = errors.New("invalid account data")
	ErrMissingSignature   = errors.New("missing required signature")
	ErrNotEnoughAccounts  = errors.New("not enough accounts")
	ErrIncorrectProgram   = errors.New("account not owned by registry program")
)
