package registry

import (
	"fmt"
	"log"
)

// Processor validates and applies registry instructions against a host
// ledger. It is synchronous and performs no blocking or retries; every
// failure path leaves the referenced account untouched because all
// validation happens before the single WriteData per operation.
type Processor struct {
	programID Pubkey
	host      Host
	log       *log.Logger
}

func NewProcessor(programID Pubkey, host Host, logger *log.Logger) *Processor {
	return &Processor{programID: programID, host: host, log: logger}
}

// Process decodes raw instruction bytes and dispatches to the operation
// handler. Accounts arrive in the order the caller referenced them.
func (p *Processor) Process(accounts []AccountRef, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	switch ix := ix.(type) {
	case *RegisterWorld:
		return p.registerWorld(accounts, ix)
	case *UpdateWorld:
		return p.updateWorld(accounts, ix)
	case *DelistWorld:
		return p.delistWorld(accounts)
	}
	return ErrInvalidInstruction
}

// Register accounts: 0 payer (signer), 1 world entry, 2 authority (signer).
func (p *Processor) registerWorld(accounts []AccountRef, ix *RegisterWorld) error {
	// Caps first, so a failure is a no-op before any allocation.
	if len(ix.Name) > NameLen || len(ix.Endpoint) > EndpointLen || len(ix.MetadataURI) > MetadataURILen {
		return ErrStringTooLong
	}
	if len(accounts) < 3 {
		return ErrNotEnoughAccounts
	}
	payer, entryAcc, authority := accounts[0], accounts[1], accounts[2]

	if !payer.Signer || !authority.Signer {
		return ErrMissingSignature
	}

	expected, bump, err := DeriveWorldAddress(p.programID, ix.WorldID)
	if err != nil {
		return err
	}
	if expected != entryAcc.Key {
		p.log.Printf("invalid world entry address: expected=%s got=%s", expected, entryAcc.Key)
		return ErrInvalidPda
	}

	if p.host.Balance(entryAcc.Key) > 0 {
		return ErrAlreadyInitialized
	}

	if err := p.host.CreateAccount(payer.Key, entryAcc.Key, EntryLen, p.programID); err != nil {
		return fmt.Errorf("create world entry account: %w", err)
	}

	entry := WorldEntry{
		Magic:          EntryMagic,
		Version:        EntryVersion,
		Bump:           bump,
		WorldID:        ix.WorldID,
		Authority:      authority.Key,
		GamePort:       ix.GamePort,
		LastUpdateSlot: p.host.Slot(),
	}
	if ix.AssetPort != nil {
		entry.AssetPort = *ix.AssetPort
	}
	if ix.TokenMint != nil {
		entry.TokenMint = *ix.TokenMint
	}
	if ix.DbcPool != nil {
		entry.DbcPool = *ix.DbcPool
	}
	if err := WriteFixedString(entry.Name[:], ix.Name); err != nil {
		return err
	}
	if err := WriteFixedString(entry.Endpoint[:], ix.Endpoint); err != nil {
		return err
	}
	if err := WriteFixedString(entry.MetadataURI[:], ix.MetadataURI); err != nil {
		return err
	}

	if err := p.host.WriteData(entryAcc.Key, entry.Marshal()); err != nil {
		return fmt.Errorf("write world entry: %w", err)
	}

	p.log.Printf("registered world %s: %q at %s:%d",
		ix.WorldID, ReadFixedString(entry.Name[:]), ReadFixedString(entry.Endpoint[:]), entry.GamePort)
	return nil
}

// Update accounts: 0 world entry, 1 authority (signer).
func (p *Processor) updateWorld(accounts []AccountRef, ix *UpdateWorld) error {
	entry, entryAcc, err := p.loadAuthorized(accounts)
	if err != nil {
		return err
	}

	if ix.Name != nil {
		if err := WriteFixedString(entry.Name[:], *ix.Name); err != nil {
			return err
		}
	}
	if ix.Endpoint != nil {
		if err := WriteFixedString(entry.Endpoint[:], *ix.Endpoint); err != nil {
			return err
		}
	}
	if ix.MetadataURI != nil {
		if err := WriteFixedString(entry.MetadataURI[:], *ix.MetadataURI); err != nil {
			return err
		}
	}
	if ix.GamePort != nil {
		entry.GamePort = *ix.GamePort
	}
	if ix.AssetPort.Present() {
		entry.AssetPort, _ = ix.AssetPort.Value()
	}
	if ix.TokenMint.Present() {
		entry.TokenMint, _ = ix.TokenMint.Value()
	}
	if ix.DbcPool.Present() {
		entry.DbcPool, _ = ix.DbcPool.Value()
	}

	entry.LastUpdateSlot = p.host.Slot()

	if err := p.host.WriteData(entryAcc.Key, entry.Marshal()); err != nil {
		return fmt.Errorf("write world entry: %w", err)
	}

	p.log.Printf("updated world %s: %q at %s:%d",
		entry.WorldID, ReadFixedString(entry.Name[:]), ReadFixedString(entry.Endpoint[:]), entry.GamePort)
	return nil
}

// Delist accounts: 0 world entry, 1 authority (signer).
func (p *Processor) delistWorld(accounts []AccountRef) error {
	entry, entryAcc, err := p.loadAuthorized(accounts)
	if err != nil {
		return err
	}

	// Drain the balance to the authority and zero the payload, returning
	// the slot to a state indistinguishable from uninitialized.
	if err := p.host.Transfer(entryAcc.Key, entry.Authority, p.host.Balance(entryAcc.Key)); err != nil {
		return fmt.Errorf("drain world entry balance: %w", err)
	}
	if err := p.host.WriteData(entryAcc.Key, make([]byte, EntryLen)); err != nil {
		return fmt.Errorf("zero world entry: %w", err)
	}

	p.log.Printf("delisted world %s", entry.WorldID)
	return nil
}

// loadAuthorized runs the shared update/delist preconditions: signer flag,
// registry ownership, well-formed stored entry, address re-derivation and
// authority equality.
func (p *Processor) loadAuthorized(accounts []AccountRef) (WorldEntry, AccountRef, error) {
	if len(accounts) < 2 {
		return WorldEntry{}, AccountRef{}, ErrNotEnoughAccounts
	}
	entryAcc, authority := accounts[0], accounts[1]

	if !authority.Signer {
		return WorldEntry{}, AccountRef{}, ErrMissingSignature
	}
	if p.host.Owner(entryAcc.Key) != p.programID {
		return WorldEntry{}, AccountRef{}, ErrIncorrectProgram
	}

	entry, err := DecodeEntry(p.host.ReadData(entryAcc.Key))
	if err != nil {
		return WorldEntry{}, AccountRef{}, err
	}

	expected, _, err := DeriveWorldAddress(p.programID, entry.WorldID)
	if err != nil {
		return WorldEntry{}, AccountRef{}, err
	}
	if expected != entryAcc.Key {
		return WorldEntry{}, AccountRef{}, ErrInvalidPda
	}
	if entry.Authority != authority.Key {
		return WorldEntry{}, AccountRef{}, ErrUnauthorized
	}
	return entry, entryAcc, nil
}
