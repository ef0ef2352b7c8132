// Package protocol defines the JSON admin protocol spoken over the
// websocket control endpoint. Every message carries a type tag and the
// protocol version; requests carry a client-chosen request_id that is
// echoed back on the matching RESULT.
package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReload  = "RELOAD"
	TypeStatus  = "STATUS"
	TypeResult  = "RESULT"
)

// BaseMessage is used to sniff the type of an incoming message before
// decoding the full payload.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// DecodeBase extracts the type tag from raw JSON.
func DecodeBase(data []byte) (BaseMessage, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("decode base message: %w", err)
	}
	if base.Type == "" {
		return base, fmt.Errorf("message missing type field")
	}
	return base, nil
}

// HelloMessage opens a session. The server rejects version mismatches.
type HelloMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Client          string `json:"client,omitempty"`
}

// CatalogDigests identifies the loaded configuration set.
type CatalogDigests struct {
	Materials    string `json:"materials"`
	Enchantments string `json:"enchantments"`
	Recipes      string `json:"recipes"`
	Tuning       string `json:"tuning"`
}

// WelcomeMessage acknowledges a HELLO.
type WelcomeMessage struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Server          string         `json:"server"`
	Digests         CatalogDigests `json:"digests"`
}

// ReloadMessage asks the server to re-read its tuning file.
type ReloadMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// StatusMessage asks for a snapshot of the server state.
type StatusMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// StatusBody is attached to the RESULT of a STATUS request.
type StatusBody struct {
	Digests       CatalogDigests `json:"digests"`
	Worlds        []string       `json:"worlds"`
	LoadedBlocks  int            `json:"loaded_blocks"`
	LoadedRegions int            `json:"loaded_regions"`
	UptimeSeconds int64          `json:"uptime_seconds"`
}

// ResultMessage answers a RELOAD or STATUS request.
type ResultMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	OK        bool        `json:"ok"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Status    *StatusBody `json:"status,omitempty"`
}
