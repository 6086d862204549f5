package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/watchtogether/server/internal/repository/connection"
	"github.com/watchtogether/server/internal/repository/participant"
	"github.com/watchtogether/server/internal/repository/room"
	"github.com/watchtogether/server/pkg/randstr"
	"github.com/watchtogether/server/pkg/wsconn"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidEventPayload  = errors.New("invalid event payload")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RoomExists(context.Context, string) (bool, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) error
	UpdateHost(ctx context.Context, roomId, hostId string) error
	// presence
	AddOnlineUser(context.Context, *room.AddOnlineUserParams) (bool, error)
	RemoveOnlineUser(context.Context, *room.RemoveOnlineUserParams) (bool, error)
	GetOnlineUsers(context.Context, string) ([]string, error)
}

type iParticipantRepo interface {
	SetParticipant(context.Context, *participant.SetParticipantParams) error
	GetParticipant(context.Context, string) (participant.Participant, error)
	ListByRoom(context.Context, string) ([]participant.Participant, error)
	UpdateRole(ctx context.Context, participantId, role string) error
	RemoveParticipant(ctx context.Context, participantId string) error
}

type iConnRepo interface {
	Add(*wsconn.Conn, connection.Binding) error
	RemoveByParticipantId(string) (*wsconn.Conn, error)
	GetConn(string) (*wsconn.Conn, error)
	GetBinding(*wsconn.Conn) (connection.Binding, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	Secret string
}

type service struct {
	roomRepo        iRoomRepo
	participantRepo iParticipantRepo
	connRepo        iConnRepo
	generator       iGenerator
	secret          string
	logger          *slog.Logger
	roomLocks       *roomLocks
}

func NewService(roomRepo iRoomRepo, participantRepo iParticipantRepo, connRepo iConnRepo, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		connRepo:        connRepo,
		secret:          cfg.Secret,
		logger:          logger,
		roomLocks:       newRoomLocks(),
	}

	// invite alphabet without ambiguous glyphs (0/O, 1/I/L)
	letterBytes := []byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	s.generator = randstr.New(letterBytes)

	return &s
}
