package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/event"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/registry"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/store"
)

// Hub routes every inbound room event: it applies the mutation to the
// registry or the file store and fans the result out to the room's current
// connections. All mutations run on the single Run goroutine, so events in
// the same room are applied and delivered in arrival order.
type Hub struct {
	registry *registry.Registry
	store    *store.Store

	// Connected clients by connection id
	clients map[string]*Client

	// Inbound events from client read pumps
	inbound chan *inbound

	// Register requests from new connections
	register chan *Client

	// Unregister requests from closing connections
	unregister chan *Client

	mu sync.RWMutex
}

type inbound struct {
	sender *Client
	env    *event.Envelope
}

func NewHub(reg *registry.Registry, st *store.Store) *Hub {
	return &Hub{
		registry:   reg,
		store:      st,
		clients:    make(map[string]*Client),
		inbound:    make(chan *inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Registry returns the hub's room registry
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}

// Store returns the hub's document store
func (h *Hub) Store() *store.Store {
	return h.store
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client %s connected (total: %d)", client.id, clientCount)

		case client := <-h.unregister:
			h.dropClient(client)

		case in := <-h.inbound:
			h.dispatch(in.sender, in.env)
		}
	}
}

// dispatch routes one inbound event by type. Malformed payloads drop the
// mutation and log; the connection stays open.
func (h *Hub) dispatch(sender *Client, env *event.Envelope) {
	var err error
	switch env.Type {
	case event.TypeJoin:
		err = h.handleJoin(sender, env.Payload)
	case event.TypeCodeChange:
		err = h.handleCodeChange(sender, env.Payload)
	case event.TypeChatMessage:
		err = h.handleChatMessage(sender, env.Payload)
	case event.TypeFileCreate:
		err = h.handleFileCreate(sender, env.Payload)
	case event.TypeFileUpdate:
		err = h.handleFileUpdate(sender, env.Payload)
	case event.TypeFileRename:
		err = h.handleFileRename(sender, env.Payload)
	case event.TypeFileDelete:
		err = h.handleFileDelete(sender, env.Payload)
	default:
		log.Printf("⚠️ Unknown event type %q from client %s", env.Type, sender.id)
		return
	}

	if err != nil {
		log.Printf("⚠️ Dropped %s event from client %s: %v", env.Type, sender.id, err)
	}
}

func (h *Hub) handleJoin(sender *Client, payload json.RawMessage) error {
	var req event.JoinRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	if req.RoomID == "" || req.Username == "" {
		return errMissingFields
	}

	roster, departures := h.registry.Join(sender.id, req.RoomID, req.Username)

	// Joining a new room implicitly leaves the old one; the old room's
	// remaining members get the same notice a disconnect would produce.
	for _, dep := range departures {
		h.notifyDeparture(sender, dep)
	}

	clients := make([]event.Member, len(roster))
	for i, m := range roster {
		clients[i] = event.Member{ConnectionID: m.ConnectionID, Username: m.Username}
	}

	joined, err := event.Encode(event.TypeJoined, event.JoinedPayload{
		Clients:      clients,
		Username:     req.Username,
		ConnectionID: sender.id,
	})
	if err != nil {
		return err
	}
	h.fanOut(req.RoomID, joined, nil)

	// The joiner alone gets the room's current file set
	files := h.store.LoadAll(req.RoomID)
	wireFiles := make([]event.File, len(files))
	for i, f := range files {
		wireFiles[i] = event.File{ID: f.ID, Name: f.Name, Content: f.Content}
	}
	loaded, err := event.Encode(event.TypeFilesLoaded, event.FilesLoadedPayload{Files: wireFiles})
	if err != nil {
		return err
	}
	h.sendToClient(sender, loaded)

	log.Printf("Client %s joined room %s as %q (members: %d)", sender.id, req.RoomID, req.Username, len(roster))
	return nil
}

func (h *Hub) handleCodeChange(sender *Client, payload json.RawMessage) error {
	var req event.CodeChangeRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errMissingFields
	}

	// Pure relay: the room id is stripped and no canonical buffer is kept.
	// The sender never sees its own change back.
	data, err := event.Encode(event.TypeCodeChange, event.CodeChangePayload{Code: req.Code})
	if err != nil {
		return err
	}
	h.fanOut(req.RoomID, data, sender)
	return nil
}

func (h *Hub) handleChatMessage(sender *Client, payload json.RawMessage) error {
	var msg event.ChatMessage
	if err := unmarshalPayload(payload, &msg); err != nil {
		return err
	}
	if msg.RoomID == "" {
		return errMissingFields
	}

	// Relayed verbatim, never stored
	data, err := event.Encode(event.TypeChatMessage, msg)
	if err != nil {
		return err
	}
	h.fanOut(msg.RoomID, data, sender)
	return nil
}

func (h *Hub) handleFileCreate(sender *Client, payload json.RawMessage) error {
	var req event.FilePayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	file := req.File
	if file.RoomID == "" || file.ID == "" || file.Name == "" {
		return errMissingFields
	}

	ok := h.store.Create(file.RoomID, store.FileEntry{ID: file.ID, Name: file.Name, Content: file.Content})
	if !ok {
		// Name conflict surfaces to the sender only, never broadcast
		h.reject(sender, event.TypeCreateRejected, file.ID, file.Name)
		return nil
	}

	// The creator's copy originated outside the store, so the broadcast
	// includes the creator as well.
	data, err := event.Encode(event.TypeFileCreate, req)
	if err != nil {
		return err
	}
	h.fanOut(file.RoomID, data, nil)
	return nil
}

func (h *Hub) handleFileUpdate(sender *Client, payload json.RawMessage) error {
	var req event.FilePayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	file := req.File
	if file.RoomID == "" || file.ID == "" {
		return errMissingFields
	}

	// An unknown id is a no-op on the store, but the event still goes out
	h.store.Update(file.RoomID, file.ID, file.Content)

	data, err := event.Encode(event.TypeFileUpdate, req)
	if err != nil {
		return err
	}
	h.fanOut(file.RoomID, data, nil)
	return nil
}

func (h *Hub) handleFileRename(sender *Client, payload json.RawMessage) error {
	var req event.FilePayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	file := req.File
	if file.RoomID == "" || file.ID == "" || file.Name == "" {
		return errMissingFields
	}

	if !h.store.Rename(file.RoomID, file.ID, file.Name) {
		h.reject(sender, event.TypeRenameRejected, file.ID, file.Name)
		return nil
	}

	data, err := event.Encode(event.TypeFileRename, req)
	if err != nil {
		return err
	}
	h.fanOut(file.RoomID, data, nil)
	return nil
}

func (h *Hub) handleFileDelete(sender *Client, payload json.RawMessage) error {
	var req event.FileDeleteRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return err
	}
	if req.RoomID == "" || req.ID == "" {
		return errMissingFields
	}

	h.store.Delete(req.RoomID, req.ID)

	data, err := event.Encode(event.TypeFileDelete, event.FileDeletePayload{ID: req.ID})
	if err != nil {
		return err
	}
	h.fanOut(req.RoomID, data, nil)
	return nil
}

// notifyDeparture fans a disconnected notice to the room's remaining
// members. The departing connection is already out of the roster, so
// sender exclusion is implicit.
func (h *Hub) notifyDeparture(departed *Client, dep registry.Departure) {
	data, err := event.Encode(event.TypeDisconnected, event.DisconnectedPayload{
		ConnectionID: departed.id,
		Username:     dep.Username,
	})
	if err != nil {
		log.Printf("Failed to encode disconnected event: %v", err)
		return
	}
	h.fanOut(dep.RoomID, data, departed)
}

// reject tells the offending sender that its mutation was refused
func (h *Hub) reject(sender *Client, t event.Type, id, name string) {
	data, err := event.Encode(t, event.RejectedPayload{ID: id, Name: name})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", t, err)
		return
	}
	h.sendToClient(sender, data)
	log.Printf("Name conflict: %s sent to client %s (name %q)", t, sender.id, name)
}

// fanOut delivers data to every current member of the room, skipping
// except when non-nil. Delivery is fire-and-forget; a client whose send
// buffer is full is dropped rather than allowed to stall the room.
func (h *Hub) fanOut(roomID string, data []byte, except *Client) {
	members := h.registry.Members(roomID)

	var stale []*Client
	h.mu.RLock()
	for _, m := range members {
		client, ok := h.clients[m.ConnectionID]
		if !ok || client == except {
			continue
		}
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		log.Printf("🚫 Dropping client %s: send buffer full", client.id)
		h.dropClient(client)
	}
}

// sendToClient delivers data to a single connection, dropping it when its
// buffer is full. Send failures never propagate to the room.
func (h *Hub) sendToClient(client *Client, data []byte) {
	h.mu.RLock()
	_, ok := h.clients[client.id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- data:
	default:
		log.Printf("🚫 Dropping client %s: send buffer full", client.id)
		h.dropClient(client)
	}
}

// dropClient removes the connection, cleans up its membership, and
// notifies the rooms it belonged to. Only runs on the Run goroutine, and
// tolerates duplicate unregisters.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	h.mu.Unlock()

	close(client.send)

	departures := h.registry.Leave(client.id)
	for _, dep := range departures {
		h.notifyDeparture(client, dep)
		log.Printf("Client %s left room %s (remaining: %d)", client.id, dep.RoomID, len(h.registry.Members(dep.RoomID)))
	}
	if len(departures) == 0 {
		log.Printf("Client %s disconnected", client.id)
	}
}

// Stats surface, queried live from the registry and store

func (h *Hub) GetRoomCount() int {
	return h.registry.RoomCount()
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetActiveRooms() map[string]int {
	return h.registry.ActiveRooms()
}

func (h *Hub) GetFileCount() int {
	return h.store.FileCount()
}
