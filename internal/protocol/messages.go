package protocol

import "github.com/google/uuid"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RequestID       uuid.UUID  `json:"request_id"`
	WorldID         *uuid.UUID `json:"world_id,omitempty"`
	ClientName      string     `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	RequestID       uuid.UUID `json:"request_id"`
	WorldID         uuid.UUID `json:"world_id"`
	TokenMint       *string   `json:"token_mint,omitempty"`
	MOTD            string    `json:"motd,omitempty"`
	Capabilities    []string  `json:"capabilities"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
