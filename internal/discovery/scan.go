// Package discovery turns raw registry accounts into a world directory.
// It only ever reads committed records; entries that fail the layout checks
// are dropped rather than surfaced as errors.
package discovery

import (
	"context"
	"strconv"

	"owp.world/internal/protocol"
	"owp.world/internal/registry"
)

// Account is one (address, raw bytes) pair owned by the registry program.
type Account struct {
	Address registry.Pubkey
	Data    []byte
}

// Scanner is a read-only bulk view of the registry program's accounts.
// Implemented by the RPC client and by the in-memory ledger.
type Scanner interface {
	ProgramAccounts(ctx context.Context, programID registry.Pubkey) ([]Account, error)
}

// Directory scans and decodes every world entry. Accounts failing the
// magic/version/layout checks (including delisted, zeroed slots) are
// skipped; all-zero 32-byte fields map to absent.
func Directory(ctx context.Context, s Scanner, programID registry.Pubkey) ([]protocol.WorldDirectoryEntry, error) {
	accounts, err := s.ProgramAccounts(ctx, programID)
	if err != nil {
		return nil, err
	}

	out := make([]protocol.WorldDirectoryEntry, 0, len(accounts))
	for _, acc := range accounts {
		entry, err := registry.DecodeEntry(acc.Data)
		if err != nil {
			continue
		}
		out = append(out, toDirectoryEntry(entry))
	}
	return out, nil
}

func toDirectoryEntry(e registry.WorldEntry) protocol.WorldDirectoryEntry {
	lastSeen := strconv.FormatUint(e.LastUpdateSlot, 10)
	authority := e.Authority.String()
	return protocol.WorldDirectoryEntry{
		WorldID:     e.WorldID.UUID(),
		Name:        registry.ReadFixedString(e.Name[:]),
		Endpoint:    registry.ReadFixedString(e.Endpoint[:]),
		Port:        e.GamePort,
		TokenMint:   optionalKey(e.TokenMint),
		DbcPool:     optionalKey(e.DbcPool),
		WorldPubkey: &authority,
		LastSeen:    &lastSeen,
	}
}

func optionalKey(k registry.Pubkey) *string {
	if k.IsZero() {
		return nil
	}
	s := k.String()
	return &s
}
