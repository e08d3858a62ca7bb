package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/event"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/registry"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/store"
)

func newTestHub() *Hub {
	hub := NewHub(registry.New(), store.New())
	go hub.Run()
	return hub
}

// newTestClient registers a bare client with the hub. The pumps are not
// started; tests read fan-out frames straight from the send buffer.
func newTestClient(t *testing.T, hub *Hub, id string, buffer int) *Client {
	t.Helper()
	client := &Client{hub: hub, id: id, send: make(chan []byte, buffer)}
	hub.register <- client
	return client
}

func sendEvent(t *testing.T, hub *Hub, sender *Client, typ event.Type, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	hub.inbound <- &inbound{sender: sender, env: &event.Envelope{Type: typ, Payload: raw}}
}

func nextEvent(t *testing.T, client *Client) *event.Envelope {
	t.Helper()
	select {
	case data := <-client.send:
		env, err := event.Decode(data)
		if err != nil {
			t.Fatalf("Received undecodable frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatalf("Client %s received no event within 1s", client.id)
		return nil
	}
}

func expectNoEvent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("Client %s should not have received an event, got %s", client.id, data)
	case <-time.After(100 * time.Millisecond):
	}
}

func decodePayload(t *testing.T, env *event.Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, v); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", env.Type, err)
	}
}

func joinRoom(t *testing.T, hub *Hub, client *Client, roomID, username string) {
	t.Helper()
	sendEvent(t, hub, client, event.TypeJoin, event.JoinRequest{RoomID: roomID, Username: username})
}

func TestJoinRosterScenario(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")

	env := nextEvent(t, alice)
	if env.Type != event.TypeJoined {
		t.Fatalf("Expected joined, got %s", env.Type)
	}
	var joined event.JoinedPayload
	decodePayload(t, env, &joined)
	if len(joined.Clients) != 1 || joined.Clients[0].Username != "alice" {
		t.Errorf("Joiner should receive its own roster: %+v", joined.Clients)
	}
	if joined.ConnectionID != "conn-a" {
		t.Errorf("Expected connectionId conn-a, got %s", joined.ConnectionID)
	}

	if env := nextEvent(t, alice); env.Type != event.TypeFilesLoaded {
		t.Fatalf("Joiner should receive files-loaded after joined, got %s", env.Type)
	}

	joinRoom(t, hub, bob, "X9", "bob")

	// Bob receives the full roster listing both members
	env = nextEvent(t, bob)
	if env.Type != event.TypeJoined {
		t.Fatalf("Expected joined, got %s", env.Type)
	}
	decodePayload(t, env, &joined)
	if len(joined.Clients) != 2 {
		t.Fatalf("Bob should see both members, got %d", len(joined.Clients))
	}
	if joined.Clients[0].Username != "alice" || joined.Clients[1].Username != "bob" {
		t.Errorf("Roster should list alice then bob: %+v", joined.Clients)
	}

	// Alice receives a roster update naming bob as the joiner
	env = nextEvent(t, alice)
	decodePayload(t, env, &joined)
	if joined.Username != "bob" {
		t.Errorf("Alice should learn bob joined, got %q", joined.Username)
	}

	// files-loaded goes to the joiner only
	if env := nextEvent(t, bob); env.Type != event.TypeFilesLoaded {
		t.Fatalf("Expected files-loaded for bob, got %s", env.Type)
	}
	expectNoEvent(t, alice)
}

func TestDuplicateJoinDoesNotDuplicateRoster(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice) // joined
	nextEvent(t, alice) // files-loaded

	joinRoom(t, hub, alice, "X9", "alice")
	env := nextEvent(t, alice)
	var joined event.JoinedPayload
	decodePayload(t, env, &joined)
	if len(joined.Clients) != 1 {
		t.Errorf("Duplicate join should not duplicate the roster, got %d entries", len(joined.Clients))
	}
}

func TestCodeChangeExcludesSender(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	sendEvent(t, hub, alice, event.TypeCodeChange, event.CodeChangeRequest{RoomID: "X9", Code: "print(1)"})

	env := nextEvent(t, bob)
	if env.Type != event.TypeCodeChange {
		t.Fatalf("Expected code-change, got %s", env.Type)
	}
	var code event.CodeChangePayload
	decodePayload(t, env, &code)
	if code.Code != "print(1)" {
		t.Errorf("Expected code 'print(1)', got %q", code.Code)
	}

	expectNoEvent(t, alice)
}

func TestChatMessageRelayedVerbatim(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	msg := event.ChatMessage{RoomID: "X9", Username: "alice", Message: "hi", Time: "12:30"}
	sendEvent(t, hub, alice, event.TypeChatMessage, msg)

	env := nextEvent(t, bob)
	if env.Type != event.TypeChatMessage {
		t.Fatalf("Expected chat-message, got %s", env.Type)
	}
	var got event.ChatMessage
	decodePayload(t, env, &got)
	if got != msg {
		t.Errorf("Chat should relay verbatim: got %+v", got)
	}

	expectNoEvent(t, alice)
}

func TestFileCreateBroadcastIncludesSender(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f1", RoomID: "X9", Name: "main.py", Content: "print(1)"},
	})

	for _, client := range []*Client{alice, bob} {
		env := nextEvent(t, client)
		if env.Type != event.TypeFileCreate {
			t.Fatalf("Client %s expected file-create, got %s", client.id, env.Type)
		}
		var fp event.FilePayload
		decodePayload(t, env, &fp)
		if fp.File.ID != "f1" || fp.File.Name != "main.py" {
			t.Errorf("Unexpected file payload: %+v", fp.File)
		}
	}

	if hub.GetFileCount() != 1 {
		t.Errorf("Expected 1 stored file, got %d", hub.GetFileCount())
	}
}

func TestLateJoinerReceivesFiles(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f1", RoomID: "X9", Name: "main.py", Content: "print(1)"},
	})
	nextEvent(t, alice)

	bob := newTestClient(t, hub, "conn-b", 16)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, bob) // joined

	env := nextEvent(t, bob)
	if env.Type != event.TypeFilesLoaded {
		t.Fatalf("Expected files-loaded, got %s", env.Type)
	}
	var loaded event.FilesLoadedPayload
	decodePayload(t, env, &loaded)
	if len(loaded.Files) != 1 || loaded.Files[0].Name != "main.py" || loaded.Files[0].Content != "print(1)" {
		t.Errorf("Late joiner should see the room's files: %+v", loaded.Files)
	}
}

func TestRenameConflictRejectedSenderOnly(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f1", RoomID: "X9", Name: "main.py"},
	})
	nextEvent(t, alice)
	nextEvent(t, bob)
	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f2", RoomID: "X9", Name: "util.py"},
	})
	nextEvent(t, alice)
	nextEvent(t, bob)

	// Bob renames util.py onto the existing name: failure to bob only
	sendEvent(t, hub, bob, event.TypeFileRename, event.FilePayload{
		File: event.File{ID: "f2", RoomID: "X9", Name: "main.py"},
	})

	env := nextEvent(t, bob)
	if env.Type != event.TypeRenameRejected {
		t.Fatalf("Expected file-rename-rejected, got %s", env.Type)
	}
	var rejected event.RejectedPayload
	decodePayload(t, env, &rejected)
	if rejected.ID != "f2" || rejected.Name != "main.py" {
		t.Errorf("Unexpected rejection payload: %+v", rejected)
	}

	expectNoEvent(t, alice)

	files := hub.Store().LoadAll("X9")
	if files[1].Name != "util.py" {
		t.Errorf("Failed rename must leave the store unchanged, got %q", files[1].Name)
	}
}

func TestFileUpdateUnknownIDStillBroadcast(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)

	sendEvent(t, hub, alice, event.TypeFileUpdate, event.FilePayload{
		File: event.File{ID: "missing", RoomID: "X9", Content: "x"},
	})

	// No-op on the store, but the event still goes out to all members
	env := nextEvent(t, alice)
	if env.Type != event.TypeFileUpdate {
		t.Fatalf("Expected file-update, got %s", env.Type)
	}
	if hub.GetFileCount() != 0 {
		t.Errorf("Unknown id must not create a file, got %d", hub.GetFileCount())
	}
}

func TestFileDeleteBroadcastsID(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f1", RoomID: "X9", Name: "main.py"},
	})
	nextEvent(t, alice)

	sendEvent(t, hub, alice, event.TypeFileDelete, event.FileDeleteRequest{ID: "f1", RoomID: "X9"})

	env := nextEvent(t, alice)
	if env.Type != event.TypeFileDelete {
		t.Fatalf("Expected file-delete, got %s", env.Type)
	}
	var del event.FileDeletePayload
	decodePayload(t, env, &del)
	if del.ID != "f1" {
		t.Errorf("Expected id f1, got %q", del.ID)
	}
	if hub.GetFileCount() != 0 {
		t.Errorf("File should be gone from the store, got %d", hub.GetFileCount())
	}
}

func TestDisconnectNotifiesRemainingAndKeepsFiles(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	sendEvent(t, hub, alice, event.TypeFileCreate, event.FilePayload{
		File: event.File{ID: "f1", RoomID: "X9", Name: "main.py"},
	})
	nextEvent(t, alice)
	nextEvent(t, bob)

	hub.unregister <- alice

	env := nextEvent(t, bob)
	if env.Type != event.TypeDisconnected {
		t.Fatalf("Expected disconnected, got %s", env.Type)
	}
	var gone event.DisconnectedPayload
	decodePayload(t, env, &gone)
	if gone.ConnectionID != "conn-a" || gone.Username != "alice" {
		t.Errorf("Unexpected disconnected payload: %+v", gone)
	}

	// Membership view updated, files intact
	members := hub.Registry().Members("X9")
	if len(members) != 1 || members[0].Username != "bob" {
		t.Errorf("Expected only bob to remain, got %v", members)
	}
	if len(hub.Store().LoadAll("X9")) != 1 {
		t.Error("Files must persist independent of their creator's presence")
	}
}

func TestJoinSecondRoomNotifiesFirst(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 16)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)
	nextEvent(t, bob)
	nextEvent(t, bob)

	// Alice switches rooms: X9 is implicitly left
	joinRoom(t, hub, alice, "Z1", "alice")

	env := nextEvent(t, bob)
	if env.Type != event.TypeDisconnected {
		t.Fatalf("Old room should see a leave notice, got %s", env.Type)
	}

	if len(hub.Registry().Members("X9")) != 1 {
		t.Error("Alice should no longer be a member of X9")
	}
	if len(hub.Registry().Members("Z1")) != 1 {
		t.Error("Alice should be a member of Z1")
	}
}

func TestMalformedPayloadKeepsConnection(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)

	// Missing username: mutation dropped, no fan-out, connection stays
	sendEvent(t, hub, alice, event.TypeJoin, map[string]string{"roomId": "X9"})
	expectNoEvent(t, alice)

	if hub.GetClientCount() != 1 {
		t.Fatalf("Connection should survive a malformed event, got %d clients", hub.GetClientCount())
	}

	// The connection still works afterwards
	joinRoom(t, hub, alice, "X9", "alice")
	if env := nextEvent(t, alice); env.Type != event.TypeJoined {
		t.Errorf("Expected joined after recovery, got %s", env.Type)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(t, hub, "conn-a", 16)
	bob := newTestClient(t, hub, "conn-b", 1)

	joinRoom(t, hub, alice, "X9", "alice")
	nextEvent(t, alice)
	nextEvent(t, alice)
	// Bob's one-slot buffer fills with his own joined event; the
	// follow-up files-loaded cannot be delivered and bob is dropped.
	joinRoom(t, hub, bob, "X9", "bob")
	nextEvent(t, alice)

	// Alice sees bob leave
	env := nextEvent(t, alice)
	if env.Type != event.TypeDisconnected {
		t.Fatalf("Expected disconnected for the dropped client, got %s", env.Type)
	}

	members := hub.Registry().Members("X9")
	if len(members) != 1 || members[0].Username != "alice" {
		t.Errorf("Dropped client should be out of the room, got %v", members)
	}
	if hub.GetClientCount() != 1 {
		t.Errorf("Expected 1 connected client, got %d", hub.GetClientCount())
	}
}
