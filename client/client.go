// Package client is the Go SDK for a Codify room session: it maintains the
// WebSocket connection, exposes typed listener callbacks for every
// server-originated event, and debounces outgoing code edits.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/debounce"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/event"
)

// DefaultDebounce matches the editor's original emit delay
const DefaultDebounce = 300 * time.Millisecond

type Client struct {
	url      string
	roomID   string
	username string

	conn      *websocket.Conn
	debouncer *debounce.Debouncer
	handlers  handlers

	mu        sync.Mutex
	connected bool
	done      chan struct{}
}

type handlers struct {
	onJoined         func(event.JoinedPayload)
	onFilesLoaded    func([]event.File)
	onDisconnected   func(event.DisconnectedPayload)
	onCodeChange     func(string)
	onChatMessage    func(event.ChatMessage)
	onFileCreated    func(event.File)
	onFileUpdated    func(event.File)
	onFileRenamed    func(event.File)
	onFileDeleted    func(string)
	onCreateRejected func(event.RejectedPayload)
	onRenameRejected func(event.RejectedPayload)
	onError          func(error)
}

// New builds a client for one room session. Register listeners before
// calling Connect; they run on the read loop goroutine.
func New(url, roomID, username string) *Client {
	c := &Client{
		url:      url,
		roomID:   roomID,
		username: username,
		done:     make(chan struct{}),
	}
	c.debouncer = debounce.New(DefaultDebounce, func(code string) {
		if err := c.emit(event.TypeCodeChange, event.CodeChangeRequest{RoomID: c.roomID, Code: code}); err != nil {
			c.fireError(err)
		}
	})
	return c
}

// Listener registration

func (c *Client) OnJoined(fn func(event.JoinedPayload)) { c.handlers.onJoined = fn }

func (c *Client) OnFilesLoaded(fn func([]event.File)) { c.handlers.onFilesLoaded = fn }

func (c *Client) OnDisconnected(fn func(event.DisconnectedPayload)) { c.handlers.onDisconnected = fn }

func (c *Client) OnCodeChange(fn func(string)) { c.handlers.onCodeChange = fn }

func (c *Client) OnChatMessage(fn func(event.ChatMessage)) { c.handlers.onChatMessage = fn }

func (c *Client) OnFileCreated(fn func(event.File)) { c.handlers.onFileCreated = fn }

func (c *Client) OnFileUpdated(fn func(event.File)) { c.handlers.onFileUpdated = fn }

func (c *Client) OnFileRenamed(fn func(event.File)) { c.handlers.onFileRenamed = fn }

func (c *Client) OnFileDeleted(fn func(string)) { c.handlers.onFileDeleted = fn }

func (c *Client) OnCreateRejected(fn func(event.RejectedPayload)) { c.handlers.onCreateRejected = fn }

func (c *Client) OnRenameRejected(fn func(event.RejectedPayload)) { c.handlers.onRenameRejected = fn }

func (c *Client) OnError(fn func(error)) { c.handlers.onError = fn }

// Connect dials the server, sends the join request, and starts the read
// loop. The roster arrives through OnJoined, the room's current files
// through OnFilesLoaded.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.emit(event.TypeJoin, event.JoinRequest{RoomID: c.roomID, Username: c.username}); err != nil {
		conn.Close()
		return err
	}

	go c.readLoop()
	return nil
}

// SendCode queues a code edit. Rapid edits are coalesced; only the value
// standing after the debounce window actually reaches the room.
func (c *Client) SendCode(code string) {
	c.debouncer.Send(code)
}

// FlushCode forces any pending edit out immediately
func (c *Client) FlushCode() {
	c.debouncer.Flush()
}

func (c *Client) SendChat(message string) error {
	return c.emit(event.TypeChatMessage, event.ChatMessage{
		RoomID:   c.roomID,
		Username: c.username,
		Message:  message,
		Time:     time.Now().Format("15:04"),
	})
}

func (c *Client) CreateFile(file event.File) error {
	file.RoomID = c.roomID
	return c.emit(event.TypeFileCreate, event.FilePayload{File: file})
}

func (c *Client) UpdateFile(id, content string) error {
	return c.emit(event.TypeFileUpdate, event.FilePayload{
		File: event.File{ID: id, RoomID: c.roomID, Content: content},
	})
}

func (c *Client) RenameFile(id, newName string) error {
	return c.emit(event.TypeFileRename, event.FilePayload{
		File: event.File{ID: id, RoomID: c.roomID, Name: newName},
	})
}

func (c *Client) DeleteFile(id string) error {
	return c.emit(event.TypeFileDelete, event.FileDeleteRequest{ID: id, RoomID: c.roomID})
}

// Close stops the debouncer and tears down the transport. The server
// notifies the room's remaining members on its own.
func (c *Client) Close() error {
	c.debouncer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.conn.Close()
}

// Done is closed when the read loop exits
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) emit(typ event.Type, payload any) error {
	data, err := event.Encode(typ, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errors.New("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected
			c.connected = false
			c.mu.Unlock()
			if wasConnected {
				c.fireError(err)
			}
			return
		}

		env, err := event.Decode(data)
		if err != nil {
			c.fireError(err)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes a server event to the registered listener, if any
func (c *Client) dispatch(env *event.Envelope) {
	switch env.Type {
	case event.TypeJoined:
		var p event.JoinedPayload
		if c.decode(env, &p) && c.handlers.onJoined != nil {
			c.handlers.onJoined(p)
		}
	case event.TypeFilesLoaded:
		var p event.FilesLoadedPayload
		if c.decode(env, &p) && c.handlers.onFilesLoaded != nil {
			c.handlers.onFilesLoaded(p.Files)
		}
	case event.TypeDisconnected:
		var p event.DisconnectedPayload
		if c.decode(env, &p) && c.handlers.onDisconnected != nil {
			c.handlers.onDisconnected(p)
		}
	case event.TypeCodeChange:
		var p event.CodeChangePayload
		if c.decode(env, &p) && c.handlers.onCodeChange != nil {
			c.handlers.onCodeChange(p.Code)
		}
	case event.TypeChatMessage:
		var p event.ChatMessage
		if c.decode(env, &p) && c.handlers.onChatMessage != nil {
			c.handlers.onChatMessage(p)
		}
	case event.TypeFileCreate:
		var p event.FilePayload
		if c.decode(env, &p) && c.handlers.onFileCreated != nil {
			c.handlers.onFileCreated(p.File)
		}
	case event.TypeFileUpdate:
		var p event.FilePayload
		if c.decode(env, &p) && c.handlers.onFileUpdated != nil {
			c.handlers.onFileUpdated(p.File)
		}
	case event.TypeFileRename:
		var p event.FilePayload
		if c.decode(env, &p) && c.handlers.onFileRenamed != nil {
			c.handlers.onFileRenamed(p.File)
		}
	case event.TypeFileDelete:
		var p event.FileDeletePayload
		if c.decode(env, &p) && c.handlers.onFileDeleted != nil {
			c.handlers.onFileDeleted(p.ID)
		}
	case event.TypeCreateRejected:
		var p event.RejectedPayload
		if c.decode(env, &p) && c.handlers.onCreateRejected != nil {
			c.handlers.onCreateRejected(p)
		}
	case event.TypeRenameRejected:
		var p event.RejectedPayload
		if c.decode(env, &p) && c.handlers.onRenameRejected != nil {
			c.handlers.onRenameRejected(p)
		}
	}
}

func (c *Client) decode(env *event.Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		c.fireError(fmt.Errorf("decode %s payload: %w", env.Type, err))
		return false
	}
	return true
}

func (c *Client) fireError(err error) {
	if c.handlers.onError != nil {
		c.handlers.onError(err)
	}
}
