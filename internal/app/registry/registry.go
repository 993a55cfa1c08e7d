package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

// Notifier receives every presence change. It is called with the registry
// lock held, so it must return without blocking and must not call back into
// the registry.
type Notifier func(change contracts.PresenceChange)

// Registry owns the user_id → connection map and the room index. It is the
// single source of truth for who is online on this process.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]contracts.Connection // user_id → connection
	rooms  map[string]map[string]struct{}  // room_id → user ids
	joined map[string]map[string]struct{}  // user_id → room ids
	seq    uint64
	notify Notifier
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]contracts.Connection),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

// OnChange installs the presence notifier. Call before serving traffic.
func (h *Registry) OnChange(fn Notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notify = fn
}

// Register binds userID to handle, replacing any previous connection. The
// replaced handle is returned so the caller can close it; room membership
// belonged to the old connection and is dropped.
func (h *Registry) Register(userID string, handle contracts.Handle) (contracts.Handle, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if handle == nil {
		return nil, errors.New("registry: nil handle")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var prior contracts.Handle
	if old, ok := h.conns[userID]; ok && old.Handle.ID() != handle.ID() {
		prior = old.Handle
		h.leaveAllLocked(userID)
	}
	h.conns[userID] = contracts.Connection{
		UserID:        userID,
		Handle:        handle,
		EstablishedAt: h.now(),
	}
	h.changedLocked()
	return prior, nil
}

// Unregister removes userID only while handle is still the registered one.
// A stale handle (already replaced by a newer Register) is a no-op.
func (h *Registry) Unregister(userID string, handle contracts.Handle) bool {
	if userID == "" || handle == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.conns[userID]
	if !ok || cur.Handle.ID() != handle.ID() {
		return false
	}
	delete(h.conns, userID)
	h.leaveAllLocked(userID)
	h.changedLocked()
	return true
}

func (h *Registry) Lookup(userID string) (contracts.Handle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[userID]
	if !ok {
		return nil, false
	}
	return c.Handle, true
}

func (h *Registry) Snapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *Registry) Connections() []contracts.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectionsLocked()
}

func (h *Registry) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// JoinRoom adds the connection to roomID. Only the currently registered
// handle of userID may join.
func (h *Registry) JoinRoom(userID string, handle contracts.Handle, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.conns[userID]
	if !ok || handle == nil || cur.Handle.ID() != handle.ID() {
		return domain.ErrConnectionClosed
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][userID] = struct{}{}
	if h.joined[userID] == nil {
		h.joined[userID] = make(map[string]struct{})
	}
	h.joined[userID][roomID] = struct{}{}
	return nil
}

// RoomMembers returns the sorted user ids currently in roomID.
func (h *Registry) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]string, 0, len(h.rooms[roomID]))
	for uid := range h.rooms[roomID] {
		members = append(members, uid)
	}
	sort.Strings(members)
	return members
}

// Rooms returns the sorted room ids userID has joined.
func (h *Registry) Rooms(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.joined[userID]))
	for rid := range h.joined[userID] {
		rooms = append(rooms, rid)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Registry) leaveAllLocked(userID string) {
	for rid := range h.joined[userID] {
		delete(h.rooms[rid], userID)
		if len(h.rooms[rid]) == 0 {
			delete(h.rooms, rid)
		}
	}
	delete(h.joined, userID)
}

func (h *Registry) changedLocked() {
	h.seq++
	if h.notify == nil {
		return
	}
	h.notify(contracts.PresenceChange{
		Seq:     h.seq,
		Online:  h.snapshotLocked(),
		Targets: h.connectionsLocked(),
	})
}

func (h *Registry) snapshotLocked() []string {
	ids := make([]string, 0, len(h.conns))
	for uid := range h.conns {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids
}

func (h *Registry) connectionsLocked() []contracts.Connection {
	out := make([]contracts.Connection, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
