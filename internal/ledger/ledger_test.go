package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"owp.world/internal/registry"
)

func TestLedger_CreateAccountIsExclusive(t *testing.T) {
	l := New()
	payer := registry.Pubkey{1}
	addr := registry.Pubkey{2}
	owner := registry.Pubkey{3}
	l.Fund(payer, 100_000)

	if err := l.CreateAccount(payer, addr, 100, owner); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := l.Balance(addr); got != l.MinimumBalance(100) {
		t.Fatalf("funded balance: %d", got)
	}
	if l.Owner(addr) != owner {
		t.Fatalf("owner: %s", l.Owner(addr))
	}
	if got := len(l.ReadData(addr)); got != 100 {
		t.Fatalf("data size: %d", got)
	}

	err := l.CreateAccount(payer, addr, 100, owner)
	if !errors.Is(err, ErrAccountInUse) {
		t.Fatalf("expected ErrAccountInUse, got %v", err)
	}
}

func TestLedger_CreateAccountNeedsFunds(t *testing.T) {
	l := New()
	payer := registry.Pubkey{1}
	l.Fund(payer, l.MinimumBalance(100)-1)

	err := l.CreateAccount(payer, registry.Pubkey{2}, 100, registry.Pubkey{3})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := l.Balance(registry.Pubkey{2}); got != 0 {
		t.Fatalf("account funded despite failure: %d", got)
	}
}

func TestLedger_DrainedAccountCanBeReallocated(t *testing.T) {
	l := New()
	payer := registry.Pubkey{1}
	addr := registry.Pubkey{2}
	sink := registry.Pubkey{4}
	l.Fund(payer, 100_000)

	if err := l.CreateAccount(payer, addr, 10, registry.Pubkey{3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Transfer(addr, sink, l.Balance(addr)); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if err := l.CreateAccount(payer, addr, 10, registry.Pubkey{3}); err != nil {
		t.Fatalf("recreate after drain: %v", err)
	}
}

func TestLedger_Transfer(t *testing.T) {
	l := New()
	a := registry.Pubkey{1}
	b := registry.Pubkey{2}
	l.Fund(a, 50)

	if err := l.Transfer(a, b, 30); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if l.Balance(a) != 20 || l.Balance(b) != 30 {
		t.Fatalf("balances: %d/%d", l.Balance(a), l.Balance(b))
	}

	if err := l.Transfer(a, b, 21); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	l.Fund(b, math.MaxUint64-30)
	l.Fund(a, 10)
	if err := l.Transfer(a, b, 1); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}

func TestLedger_WriteDataKeepsSize(t *testing.T) {
	l := New()
	payer := registry.Pubkey{1}
	addr := registry.Pubkey{2}
	l.Fund(payer, 100_000)
	if err := l.CreateAccount(payer, addr, 4, registry.Pubkey{3}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := l.WriteData(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := l.ReadData(addr)
	if string(got) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("read back: %v", got)
	}
	// Mutating the returned slice must not touch stored data.
	got[0] = 99
	if l.ReadData(addr)[0] != 1 {
		t.Fatalf("ReadData leaked internal storage")
	}

	if err := l.WriteData(addr, []byte{1}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	if err := l.WriteData(registry.Pubkey{9}, []byte{1}); err == nil {
		t.Fatalf("expected write to missing account to fail")
	}
}

func TestLedger_ProgramAccountsFiltersByOwner(t *testing.T) {
	l := New()
	payer := registry.Pubkey{1}
	program := registry.Pubkey{0x50}
	other := registry.Pubkey{0x51}
	l.Fund(payer, 1_000_000)

	if err := l.CreateAccount(payer, registry.Pubkey{10}, 8, program); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.CreateAccount(payer, registry.Pubkey{11}, 8, program); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.CreateAccount(payer, registry.Pubkey{12}, 8, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	accs, err := l.ProgramAccounts(context.Background(), program)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(accs) != 2 {
		t.Fatalf("accounts: %d", len(accs))
	}
	for _, a := range accs {
		if a.Address == (registry.Pubkey{12}) {
			t.Fatalf("foreign account leaked into scan")
		}
		if len(a.Data) != 8 {
			t.Fatalf("data size: %d", len(a.Data))
		}
	}
}
