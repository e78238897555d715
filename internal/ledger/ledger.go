// Package ledger is an in-memory stand-in for the hosting ledger runtime:
// account storage, balance accounting and a slot clock. The registry
// processor and the discovery scanner are exercised against it in tests and
// local tooling.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"owp.world/internal/discovery"
	"owp.world/internal/registry"
)

var (
	ErrAccountInUse      = errors.New("account already in use")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

type account struct {
	balance uint64
	owner   registry.Pubkey
	data    []byte
}

// Ledger serializes every operation behind one lock, mirroring the host's
// per-invocation atomicity: a reader never observes a partial write.
type Ledger struct {
	mu sync.Mutex

	slot              uint64
	minBalancePerByte uint64
	accounts          map[registry.Pubkey]*account
}

func New() *Ledger {
	return &Ledger{
		minBalancePerByte: 10,
		accounts:          map[registry.Pubkey]*account{},
	}
}

// Fund credits an account, creating it if needed. Test/bootstrap helper.
func (l *Ledger) Fund(addr registry.Pubkey, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getLocked(addr).balance += amount
}

// SetSlot moves the clock. The clock is monotonic in real hosts; callers
// are expected to only move it forward.
func (l *Ledger) SetSlot(slot uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot = slot
}

func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

func (l *Ledger) MinimumBalance(size int) uint64 {
	return uint64(size) * l.minBalancePerByte
}

func (l *Ledger) CreateAccount(payer, addr registry.Pubkey, size int, owner registry.Pubkey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[addr]; ok && acc.balance > 0 {
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}
	lamports := l.MinimumBalance(size)
	from := l.getLocked(payer)
	if from.balance < lamports {
		return fmt.Errorf("%w: payer %s", ErrInsufficientFunds, payer)
	}
	from.balance -= lamports
	l.accounts[addr] = &account{
		balance: lamports,
		owner:   owner,
		data:    make([]byte, size),
	}
	return nil
}

func (l *Ledger) Balance(addr registry.Pubkey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.balance
	}
	return 0
}

func (l *Ledger) Transfer(from, to registry.Pubkey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.getLocked(from)
	if src.balance < amount {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, from)
	}
	dst := l.getLocked(to)
	if dst.balance+amount < dst.balance {
		return ErrBalanceOverflow
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

func (l *Ledger) Owner(addr registry.Pubkey) registry.Pubkey {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.owner
	}
	return registry.Pubkey{}
}

func (l *Ledger) ReadData(addr registry.Pubkey) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil
	}
	out := make([]byte, len(acc.data))
	copy(out, acc.data)
	return out
}

func (l *Ledger) WriteData(addr registry.Pubkey, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return fmt.Errorf("no account at %s", addr)
	}
	if len(data) != len(acc.data) {
		return fmt.Errorf("data size mismatch for %s: have %d want %d", addr, len(acc.data), len(data))
	}
	copy(acc.data, data)
	return nil
}

// ProgramAccounts implements discovery.Scanner: every account owned by the
// program, with a copy of its raw bytes.
func (l *Ledger) ProgramAccounts(ctx context.Context, programID registry.Pubkey) ([]discovery.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []discovery.Account
	for addr, acc := range l.accounts {
		if acc.owner != programID {
			continue
		}
		data := make([]byte, len(acc.data))
		copy(data, acc.data)
		out = append(out, discovery.Account{Address: addr, Data: data})
	}
	return out, nil
}

func (l *Ledger) getLocked(addr registry.Pubkey) *account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &account{}
		l.accounts[addr] = acc
	}
	return acc
}
