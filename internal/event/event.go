// Package event defines the wire protocol shared by the server and clients:
// a closed set of event types carried in a JSON envelope.
package event

import (
	"encoding/json"
	"fmt"
)

// Represents the type of a room event
type Type string

const (
	// Client-originated events
	TypeJoin        Type = "join"
	TypeCodeChange  Type = "code-change"
	TypeChatMessage Type = "chat-message"
	TypeFileCreate  Type = "file-create"
	TypeFileUpdate  Type = "file-update"
	TypeFileRename  Type = "file-rename"
	TypeFileDelete  Type = "file-delete"

	// Server-originated events
	TypeJoined         Type = "joined"
	TypeFilesLoaded    Type = "files-loaded"
	TypeDisconnected   Type = "disconnected"
	TypeCreateRejected Type = "file-create-rejected"
	TypeRenameRejected Type = "file-rename-rejected"
)

// Reports whether t is a type a client is allowed to send
func (t Type) Inbound() bool {
	switch t {
	case TypeJoin, TypeCodeChange, TypeChatMessage,
		TypeFileCreate, TypeFileUpdate, TypeFileRename, TypeFileDelete:
		return true
	}
	return false
}

// Envelope wraps every message on the wire
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Member is one (connection, username) pair in a room roster
type Member struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

// File is a shared file entry as it appears on the wire
type File struct {
	ID      string `json:"id"`
	RoomID  string `json:"roomId,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// JoinedPayload is fanned to every member of the room, including the
// joiner, so clients can tell "I joined" from "someone else joined" by
// comparing usernames.
type JoinedPayload struct {
	Clients      []Member `json:"clients"`
	Username     string   `json:"username"`
	ConnectionID string   `json:"connectionId"`
}

// FilesLoadedPayload is sent to the joiner only, immediately after joined
type FilesLoadedPayload struct {
	Files []File `json:"files"`
}

type CodeChangeRequest struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// CodeChangePayload is the relayed form; the room id is stripped
type CodeChangePayload struct {
	Code string `json:"code"`
}

// ChatMessage is relayed verbatim and never stored
type ChatMessage struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Time     string `json:"time"`
}

// FilePayload wraps file-create, file-update, and file-rename events
type FilePayload struct {
	File File `json:"file"`
}

type FileDeleteRequest struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
}

// FileDeletePayload is the relayed form; the room id is stripped
type FileDeletePayload struct {
	ID string `json:"id"`
}

// RejectedPayload is sent to the offending sender only, never broadcast
type RejectedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DisconnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

// Decode parses a raw wire message into an envelope
func Decode(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("missing event type")
	}
	return &env, nil
}

// Encode builds a wire message from an event type and payload
func Encode(t Type, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}
