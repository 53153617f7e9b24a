package room

import (
	"github.com/cyberinferno/caro-server/idgenerator"
	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/safemap"
)

// MinRoomID is the first room number handed out; the id sequence starts
// just below it.
const MinRoomID = 100

// Manager owns the live-room index and the room id sequence. Rooms are
// registered at creation and dropped as soon as either side leaves.
type Manager struct {
	rooms *safemap.SafeMap[uint32, *Room]
	ids   *idgenerator.IdGenerator
	log   logger.Logger
}

// NewManager returns an empty Manager whose first room id is MinRoomID.
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		rooms: safemap.NewSafeMap[uint32, *Room](),
		ids:   idgenerator.NewIdGenerator(MinRoomID - 1),
		log:   log.With(logger.Field{Key: "component", Value: "rooms"}),
	}
}

// Create allocates the next room id, builds a room hosted by creator, and
// registers it in the index.
//
// Parameters:
//   - creator: The hosting session, installed as side A
//   - password: Room password; "" for a public room
//
// Returns:
//   - The new room
func (m *Manager) Create(creator Participant, password string) *Room {
	r := New(m.ids.Id(), creator, password, m.log)
	m.rooms.Store(r.ID(), r)
	m.log.Info("room created",
		logger.Field{Key: "room_id", Value: r.ID()},
		logger.Field{Key: "private", Value: password != ""})
	return r
}

// Get returns the room with the given id, if it is still live.
func (m *Manager) Get(id uint32) (*Room, bool) {
	return m.rooms.Load(id)
}

// Remove drops the room from the index. Removing an absent id is a no-op.
func (m *Manager) Remove(id uint32) {
	m.rooms.Delete(id)
	m.log.Info("room removed", logger.Field{Key: "room_id", Value: id})
}

// FindOpen returns some public room that is still waiting for an
// opponent, or nil. Used by quick matchmaking.
func (m *Manager) FindOpen() *Room {
	var found *Room
	m.rooms.Range(func(id uint32, r *Room) bool {
		if r.Password() == "" && r.Occupants() == 1 {
			found = r
			return false
		}
		return true
	})

	return found
}

// OpenRooms returns up to limit rooms still waiting for an opponent,
// public or private, for the room-list view.
func (m *Manager) OpenRooms(limit int) []*Room {
	var out []*Room
	m.rooms.Range(func(id uint32, r *Room) bool {
		if r.Occupants() == 1 {
			out = append(out, r)
		}
		return len(out) < limit
	})

	return out
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	return m.rooms.Len()
}
