// Package store holds the shared file set of each room: an ordered list of
// (id, name, content) entries with name uniqueness enforced per room.
package store

import (
	"sync"
)

// FileEntry is one shared file belonging to a room. The store exclusively
// owns every entry; callers only ever receive copies.
type FileEntry struct {
	ID      string
	Name    string
	Content string
}

// Store maps room ids to their file lists. Rooms are created lazily on the
// first file mutation and reclaimed through DropRoom.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]*FileEntry
}

func New() *Store {
	return &Store{
		rooms: make(map[string][]*FileEntry),
	}
}

// LoadAll returns a snapshot of the room's file list in creation order,
// empty for rooms never seen.
func (s *Store) LoadAll(roomID string) []FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.rooms[roomID]
	files := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		files = append(files, *e)
	}
	return files
}

// Create appends the file to the room's list. Returns false when another
// file in the room already has the same name; the list is left untouched.
// Name comparison is exact and case-sensitive.
func (s *Store) Create(roomID string, file FileEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.rooms[roomID] {
		if e.Name == file.Name {
			return false
		}
	}

	entry := file
	s.rooms[roomID] = append(s.rooms[roomID], &entry)
	return true
}

// Update replaces the content of the entry with the given id in place.
// An unknown room or id is a no-op; the store does not invent an error.
func (s *Store) Update(roomID, id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.rooms[roomID] {
		if e.ID == id {
			e.Content = content
			return
		}
	}
}

// Rename changes the entry's name in place. Returns false when another
// entry in the room already has newName, or when the id is unknown.
func (s *Store) Rename(roomID, id, newName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *FileEntry
	for _, e := range s.rooms[roomID] {
		if e.ID == id {
			target = e
		} else if e.Name == newName {
			return false
		}
	}
	if target == nil {
		return false
	}

	target.Name = newName
	return true
}

// Delete removes the entry if present, no-op otherwise
func (s *Store) Delete(roomID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.rooms[roomID]
	for i, e := range entries {
		if e.ID == id {
			s.rooms[roomID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(s.rooms[roomID]) == 0 {
		delete(s.rooms, roomID)
	}
}

// Rooms returns the ids of all rooms currently holding files
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// DropRoom discards the room's entire file list
func (s *Store) DropRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// FileCount returns the total number of files across all rooms
func (s *Store) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entries := range s.rooms {
		count += len(entries)
	}
	return count
}
