package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connInmemory "github.com/watchtogether/server/internal/repository/connection/inmemory"
	participantInmemory "github.com/watchtogether/server/internal/repository/participant/inmemory"
	roomRedis "github.com/watchtogether/server/internal/repository/room/redis"
	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/wsconn"
)

func newWSPair(t *testing.T) (*wsconn.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return wsconn.New(<-serverConns), client
}

func TestWatchSessionScenario(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	s, _ := miniredis.Run()
	defer s.Close()
	r := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	roomRepo := roomRedis.NewRepo(r, slog.Default(), 24*time.Hour, 24*time.Hour)
	participantRepo := participantInmemory.NewRepo()
	connRepo := connInmemory.NewRepo(slog.Default())
	service := room.NewService(roomRepo, participantRepo, connRepo, &room.Config{Secret: "test-secret"}, slog.Default())

	ctx := context.Background()

	// host creates a room
	createRoomResp, err := service.CreateRoom(ctx, &room.CreateRoomParams{DisplayName: "host"})
	require.NoError(t, err)
	assert.NotEmpty(t, createRoomResp.RoomId, "room id is empty")
	assert.NotEmpty(t, createRoomResp.AccessToken, "access token is empty")
	assert.NotEmpty(t, createRoomResp.InviteCode, "invite code is empty")

	handshakeResp, err := service.Handshake(ctx, &room.HandshakeParams{
		AccessToken: createRoomResp.AccessToken,
		RoomId:      createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Equal(t, createRoomResp.ParticipantId, handshakeResp.ParticipantId)

	hostConn, _ := newWSPair(t)
	connectHostResp, err := service.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:          hostConn,
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.True(t, connectHostResp.JoinedMember.IsOnline)
	t.Log("room created")

	// guest joins
	joinRoomResp, err := service.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:      createRoomResp.RoomId,
		DisplayName: "guest",
	})
	require.NoError(t, err)
	assert.Equal(t, "GUEST", joinRoomResp.Role)

	guestConn, guestClient := newWSPair(t)
	connectGuestResp, err := service.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:          guestConn,
		ParticipantId: joinRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Len(t, connectGuestResp.Members, 2, "member list must contain 2 members")
	assert.Len(t, connectGuestResp.Conns, 2, "conns must contain 2 conns")
	t.Log("guest joined")

	// host starts playback
	position := 0.0
	playResp, err := service.ApplyVideoEvent(ctx, &room.ApplyVideoEventParams{
		Type:     room.EventTypePlay,
		Position: &position,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Len(t, playResp.Conns, 2, "play must fan out to 2 conns")

	// the guest receives the event on the wire
	guestClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out struct {
		Type string `json:"type"`
	}
	require.NoError(t, guestClient.ReadJSON(&out))
	assert.Equal(t, room.EventTypePlay, out.Type)

	// guest asks for a snapshot
	player, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, playResp.Event.Timestamp, player.LastSyncAt, "snapshot must carry the last sync stamp")
	t.Log("playback started")

	// host drops and the guest takes over
	disconnectResp, err := service.DisconnectMember(ctx, &room.DisconnectMemberParams{
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	require.NotNil(t, disconnectResp.NewHost)
	assert.Equal(t, joinRoomResp.ParticipantId, disconnectResp.NewHost.Id)

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, joinRoomResp.ParticipantId, roomState.HostId)
	t.Log("host failover done")
}
