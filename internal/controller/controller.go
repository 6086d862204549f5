package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/validator"
	"github.com/watchtogether/server/pkg/wsconn"
	"github.com/watchtogether/server/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	GetRoomState(ctx context.Context, roomId string) (room.RoomState, error)
	Handshake(context.Context, *room.HandshakeParams) (room.HandshakeResponse, error)
	ConnectMember(context.Context, *room.ConnectMemberParams) (room.ConnectMemberResponse, error)
	Session(conn *wsconn.Conn) (room.SessionBinding, error)
	ApplyVideoEvent(context.Context, *room.ApplyVideoEventParams) (room.ApplyVideoEventResponse, error)
	SyncState(ctx context.Context, roomId string) (room.Player, error)
	RefreshPresence(ctx context.Context, roomId, participantId string) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.DisconnectMemberResponse, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
