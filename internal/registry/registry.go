// Package registry tracks which connections belong to which room and the
// display name each connection joined with. All room and membership state
// is volatile; nothing survives a process restart.
package registry

import (
	"sync"
)

// Member is one (connection, username) pair currently joined to a room
type Member struct {
	ConnectionID string
	Username     string
}

// Departure records a room a connection left, with the last-known username,
// so leave notifications can be fanned to the remaining members
type Departure struct {
	RoomID   string
	Username string
}

type memberInfo struct {
	roomID   string
	username string
}

// Registry owns the membership sets. A connection belongs to at most one
// room at a time; joining a new room implicitly leaves the old one.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string][]string // roomID -> member connection ids, join order
	conns map[string]*memberInfo
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string][]string),
		conns: make(map[string]*memberInfo),
	}
}

// Join registers the connection under roomID with the given username and
// returns the room's roster after the join, plus any room the connection
// implicitly left. Re-joining the same room is idempotent: the username is
// refreshed and no duplicate roster entry is created.
func (r *Registry) Join(connID, roomID, username string) ([]Member, []Departure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []Departure
	if info, ok := r.conns[connID]; ok {
		if info.roomID == roomID {
			info.username = username
			return r.membersLocked(roomID), nil
		}
		departures = append(departures, Departure{RoomID: info.roomID, Username: info.username})
		r.removeLocked(connID, info.roomID)
	}

	r.conns[connID] = &memberInfo{roomID: roomID, username: username}
	r.rooms[roomID] = append(r.rooms[roomID], connID)

	return r.membersLocked(roomID), departures
}

// Leave removes the connection from the room it belongs to, if any, and
// returns the departure for leave fan-out.
func (r *Registry) Leave(connID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[connID]
	if !ok {
		return nil
	}

	r.removeLocked(connID, info.roomID)
	delete(r.conns, connID)

	return []Departure{{RoomID: info.roomID, Username: info.username}}
}

// Members returns the room's current roster in join order
func (r *Registry) Members(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID)
}

// UsernameOf reports the username the connection joined with
func (r *Registry) UsernameOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return info.username, true
}

// RoomCount returns the number of rooms with at least one member
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ClientCount returns the number of connections joined to any room
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ActiveRooms returns each occupied room id with its member count
func (r *Registry) ActiveRooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make(map[string]int, len(r.rooms))
	for roomID, members := range r.rooms {
		active[roomID] = len(members)
	}
	return active
}

func (r *Registry) membersLocked(roomID string) []Member {
	ids := r.rooms[roomID]
	members := make([]Member, 0, len(ids))
	for _, id := range ids {
		if info, ok := r.conns[id]; ok {
			members = append(members, Member{ConnectionID: id, Username: info.username})
		}
	}
	return members
}

// removeLocked drops the connection from the room's member list and
// reclaims the list once it is empty.
func (r *Registry) removeLocked(connID, roomID string) {
	members := r.rooms[roomID]
	for i, id := range members {
		if id == connID {
			r.rooms[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
}
