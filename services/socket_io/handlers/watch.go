package handlers

import (
	"Quizrace/models/events"
	redis_utils "Quizrace/services/redis/utils"
	socketio_types "Quizrace/services/socket_io/types"
	"Quizrace/utils/logger"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
)

// Number of past events replayed to a dashboard when it starts watching.
const replayEvents = 20

// History returns the latest events of a game, oldest first.
type History interface {
	RecentRoundEvents(ctx context.Context, gameID uint, n int64) ([]events.Envelope, error)
}

func GameRoom(gameID uint) socket.Room {
	return socket.Room(redis_utils.FormatGameChannel(gameID))
}

// ParseGameID accepts the game id as a JSON number or a string.
func ParseGameID(args []interface{}) (uint, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing game id")
	}
	switch v := args[0].(type) {
	case float64:
		if v < 1 || v != float64(uint(v)) {
			return 0, fmt.Errorf("invalid game id %v", v)
		}
		return uint(v), nil
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("invalid game id %q", v)
		}
		return uint(id), nil
	default:
		return 0, fmt.Errorf("invalid game id type %T", v)
	}
}

// HandleWatchGame joins the dashboard to a game's room and replays the
// recent history so it does not start empty.
func HandleWatchGame(history History, client *socket.Socket, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		gameID, err := ParseGameID(args)
		if err != nil {
			logger.Warnf("[WATCH-ERROR] Socket %s: %v", client.Id(), err)
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}
		room := GameRoom(gameID)
		client.Join(room)
		sio.Watch(client.Id(), room)
		logger.Infof("[WATCH] Socket %s watching game %d (%d watchers)", client.Id(), gameID, sio.WatcherCount(room))

		if history == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		recent, err := history.RecentRoundEvents(ctx, gameID, replayEvents)
		if err != nil {
			logger.Errorf("[WATCH-ERROR] Error loading history of game %d: %v", gameID, err)
			return
		}
		client.Emit("history", recent)
	}
}

func HandleUnwatchGame(client *socket.Socket, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		gameID, err := ParseGameID(args)
		if err != nil {
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}
		room := GameRoom(gameID)
		client.Leave(room)
		sio.Unwatch(client.Id(), room)
	}
}

// Function to handle socket.io client disconnections.
func HandleDisconnecting(client *socket.Socket, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		sio.RemoveConnection(client.Id())
		logger.Debugf("[DISCONNECT] Socket %s disconnected", client.Id())
	}
}
