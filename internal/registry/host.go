package registry

// AccountRef is one account referenced by an invocation, with its
// per-invocation signer flag.
type AccountRef struct {
	Key    Pubkey
	Signer bool
}

// Host is the ledger runtime the processor runs against: account storage,
// balance accounting and a monotonic slot clock. Signature verification has
// already happened by the time the processor sees an AccountRef.
//
// The host guarantees all-or-nothing invocation semantics and serializes
// operations touching the same address; the processor itself never retries
// or rolls back.
type Host interface {
	// CreateAccount allocates a zero-filled account of the given size at
	// addr, funds it from payer with the minimum viable balance, and
	// assigns ownership to owner. Allocation is exclusive: it fails if the
	// account already holds balance.
	CreateAccount(payer, addr Pubkey, size int, owner Pubkey) error

	// Balance reports the account's current balance (0 if absent).
	Balance(addr Pubkey) uint64

	// Transfer moves amount from one account to another.
	Transfer(from, to Pubkey, amount uint64) error

	// Owner reports the program that owns the account (zero if absent).
	Owner(addr Pubkey) Pubkey

	// ReadData returns a copy of the account's data (nil if absent).
	ReadData(addr Pubkey) []byte

	// WriteData replaces the account's data in full.
	WriteData(addr Pubkey, data []byte) error

	// Slot is the current value of the monotonic host clock.
	Slot() uint64
}
