package websocket

import (
	"sort"
	"time"
)

// Room is the broadcast domain of one match
type Room struct {
	MatchID   string
	CreatedAt time.Time
	members   map[string]struct{}
}

// Rooms groups connection IDs by match ID. A room exists only while it has
// members. Owned by the hub goroutine.
type Rooms struct {
	rooms map[string]*Room
}

// NewRooms creates an empty room table
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*Room)}
}

// Add puts clientID in the room of matchID, creating it on first use, and
// returns the room size
func (r *Rooms) Add(matchID, clientID string) int {
	room, ok := r.rooms[matchID]
	if !ok {
		room = &Room{
			MatchID:   matchID,
			CreatedAt: time.Now(),
			members:   make(map[string]struct{}),
		}
		r.rooms[matchID] = room
	}
	room.members[clientID] = struct{}{}
	return len(room.members)
}

// Remove takes clientID out of the room of matchID. The room is deleted in
// the same call when it becomes empty.
func (r *Rooms) Remove(matchID, clientID string) (size int, emptied bool) {
	room, ok := r.rooms[matchID]
	if !ok {
		return 0, false
	}
	delete(room.members, clientID)
	if len(room.members) == 0 {
		delete(r.rooms, matchID)
		return 0, true
	}
	return len(room.members), false
}

// Size returns the member count of matchID, 0 if there is no room
func (r *Rooms) Size(matchID string) int {
	if room, ok := r.rooms[matchID]; ok {
		return len(room.members)
	}
	return 0
}

// Members returns a copy of the member IDs of matchID
func (r *Rooms) Members(matchID string) []string {
	room, ok := r.rooms[matchID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.members))
	for id := range room.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dissolve deletes the room of matchID and returns its former members
func (r *Rooms) Dissolve(matchID string) []string {
	ids := r.Members(matchID)
	delete(r.rooms, matchID)
	return ids
}

// Len returns the number of rooms
func (r *Rooms) Len() int {
	return len(r.rooms)
}

// Sizes returns the member count of every room
func (r *Rooms) Sizes() map[string]int {
	sizes := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		sizes[id] = len(room.members)
	}
	return sizes
}
