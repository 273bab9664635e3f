package socket_io

import (
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/services/socket_io/handlers"
	socketio_types "Quizrace/services/socket_io/types"
	"Quizrace/utils/logger"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// MySocketServer pushes round events to dashboards watching a game.
type MySocketServer socketio_types.SocketServer

func NewSocketServer() *MySocketServer {
	return (*MySocketServer)(socketio_types.NewSocketServer())
}

func options() *socket.ServerOptions {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// NOTE: higher ping interval and timeout to 1) reduce network load and 2) support slower networks
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	return c
}

// Start mounts the socket.io endpoint on the router. history may be nil.
func (sio *MySocketServer) Start(router *gin.Engine, history handlers.History) {
	c := options()
	server := (*socketio_types.SocketServer)(sio)

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)
		logger.Debugf("[SOCKET] Dashboard connected: %s", client.Id())

		// Join the room of a game and receive its recent events
		client.On("watch_game", handlers.HandleWatchGame(history, client, server))

		// Stop receiving events of a game
		client.On("unwatch_game", handlers.HandleUnwatchGame(client, server))

		client.On("disconnecting", handlers.HandleDisconnecting(client, server))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	logger.Info("Socket server started")
}

// Publish emits every event to the room of its game under the event type.
func (sio *MySocketServer) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	if sio.Sio_server == nil {
		return nil
	}
	for _, e := range evs {
		if err := sio.Sio_server.To(handlers.GameRoom(e.GameID)).Emit(e.Type, events.ToEnvelope(e)); err != nil {
			return err
		}
	}
	return nil
}

func (sio *MySocketServer) Close() {
	if sio.Sio_server != nil {
		sio.Sio_server.Close(nil)
	}
}
