package protocol

import (
	"time"

	"github.com/google/uuid"
)

// WorldManifestV1 is the local on-disk description of a world workspace.
type WorldManifestV1 struct {
	ProtocolVersion      string          `json:"protocol_version"`
	WorldID              uuid.UUID       `json:"world_id"`
	Name                 string          `json:"name"`
	CreatedAt            time.Time       `json:"created_at"`
	WorldAuthorityPubkey *string         `json:"world_authority_pubkey"`
	Ports                WorldPorts      `json:"ports"`
	Token                *WorldTokenInfo `json:"token"`
}

type WorldPorts struct {
	GamePort  uint16  `json:"game_port"`
	AssetPort *uint16 `json:"asset_port"`
}

type WorldTokenInfo struct {
	Network      string   `json:"network"`
	Mint         string   `json:"mint"`
	DbcPool      *string  `json:"dbc_pool"`
	TxSignatures []string `json:"tx_signatures"`
}

// WorldDirectoryEntry is the discovery collaborator's view of one published
// world, mapped out of the raw registry record.
type WorldDirectoryEntry struct {
	WorldID     uuid.UUID `json:"world_id"`
	Name        string    `json:"name"`
	Endpoint    string    `json:"endpoint"`
	Port        uint16    `json:"port"`
	TokenMint   *string   `json:"token_mint"`
	DbcPool     *string   `json:"dbc_pool"`
	WorldPubkey *string   `json:"world_pubkey"`
	LastSeen    *string   `json:"last_seen,omitempty"`
}
