package socketio_types

import (
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

// SocketServer is a struct that contains the socket.io server and the
// dashboard connections currently watching games.
type SocketServer struct {
	Sio_server *socket.Server
	// Map to track socket id -> watched game rooms
	Watchers map[socket.SocketId]map[socket.Room]bool
	mutex    sync.RWMutex
}

func NewSocketServer() *SocketServer {
	return &SocketServer{
		Watchers: make(map[socket.SocketId]map[socket.Room]bool),
	}
}

func (s *SocketServer) Watch(id socket.SocketId, room socket.Room) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.Watchers[id] == nil {
		s.Watchers[id] = make(map[socket.Room]bool)
	}
	s.Watchers[id][room] = true
}

func (s *SocketServer) Unwatch(id socket.SocketId, room socket.Room) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.Watchers[id], room)
}

// RemoveConnection forgets every room of a disconnected socket.
func (s *SocketServer) RemoveConnection(id socket.SocketId) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.Watchers, id)
}

// WatcherCount returns how many sockets watch the room.
func (s *SocketServer) WatcherCount(room socket.Room) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	n := 0
	for _, rooms := range s.Watchers {
		if rooms[room] {
			n++
		}
	}
	return n
}
