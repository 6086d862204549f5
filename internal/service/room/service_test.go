package room

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connInmemory "github.com/watchtogether/server/internal/repository/connection/inmemory"
	participantInmemory "github.com/watchtogether/server/internal/repository/participant/inmemory"
	roomModel "github.com/watchtogether/server/internal/repository/room"
	roomRedis "github.com/watchtogether/server/internal/repository/room/redis"
	"github.com/watchtogether/server/pkg/wsconn"
)

func newTestService(t *testing.T) *service {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	r := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	roomRepo := roomRedis.NewRepo(r, slog.Default(), 24*time.Hour, 24*time.Hour)
	participantRepo := participantInmemory.NewRepo()
	connRepo := connInmemory.NewRepo(slog.Default())

	return NewService(roomRepo, participantRepo, connRepo, &Config{Secret: "test-secret"}, slog.Default())
}

// newWSPair dials a real websocket through a test server and returns
// the server side wrapped for registration plus the client side for
// reading what the server delivers.
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

func TestCreateRoom(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{DisplayName: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, createRoomResp.RoomId, "room id is empty")
	assert.NotEmpty(t, createRoomResp.ParticipantId, "participant id is empty")
	assert.NotEmpty(t, createRoomResp.AccessToken, "access token is empty")
	assert.Len(t, createRoomResp.InviteCode, 6, "invite code must be 6 characters")

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, createRoomResp.ParticipantId, roomState.HostId, "creator must be the host")
	assert.Equal(t, roomModel.PlaybackStateStopped, roomState.Player.PlaybackState, "new room must be stopped")
	assert.Empty(t, roomState.Player.VideoURL)
	assert.Equal(t, float64(0), roomState.Player.Position)
	assert.Len(t, roomState.Members, 1)
	assert.Equal(t, "alice", roomState.Members[0].DisplayName)
}

func TestJoinRoom(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	joinRoomResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		RoomId: createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, joinRoomResp.ParticipantId)
	assert.NotEqual(t, createRoomResp.ParticipantId, joinRoomResp.ParticipantId)
	assert.Equal(t, "GUEST", joinRoomResp.Role, "joiner must be a guest")
	assert.Equal(t, "Guest", joinRoomResp.DisplayName, "display name must default")
	assert.NotEmpty(t, joinRoomResp.AccessToken)

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Len(t, roomState.Members, 2)
	assert.Equal(t, "Host", roomState.Members[0].DisplayName, "host display name must default")

	_, err = service.JoinRoom(ctx, &JoinRoomParams{RoomId: "missing"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRejoinKeepsIdentity(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{DisplayName: "host"})
	require.NoError(t, err)

	rejoinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		RoomId:      createRoomResp.RoomId,
		AccessToken: createRoomResp.AccessToken,
	})
	require.NoError(t, err)
	assert.Equal(t, createRoomResp.ParticipantId, rejoinResp.ParticipantId, "rejoin must keep the identity")
	assert.Equal(t, "HOST", rejoinResp.Role, "host keeps the role across rejoins")

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Len(t, roomState.Members, 1, "rejoin must not duplicate the record")
}

func TestHandshake(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	handshakeResp, err := service.Handshake(ctx, &HandshakeParams{
		AccessToken: createRoomResp.AccessToken,
		RoomId:      createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Equal(t, createRoomResp.ParticipantId, handshakeResp.ParticipantId)

	_, err = service.Handshake(ctx, &HandshakeParams{
		AccessToken: "not-a-token",
		RoomId:      createRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	otherRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	// a token minted for one room must not open a session in another
	_, err = service.Handshake(ctx, &HandshakeParams{
		AccessToken: createRoomResp.AccessToken,
		RoomId:      otherRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestApplyVideoEvent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	hostConn, hostClient := newWSPair(t)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          hostConn,
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	joinRoomResp, err := service.JoinRoom(ctx, &JoinRoomParams{RoomId: createRoomResp.RoomId})
	require.NoError(t, err)
	guestConn, guestClient := newWSPair(t)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          guestConn,
		ParticipantId: joinRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	// play at 12.0
	position := 12.0
	playResp, err := service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypePlay,
		Position: &position,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.False(t, playResp.PersistenceFailed)
	assert.Equal(t, EventTypePlay, playResp.Event.Type)
	assert.NotZero(t, playResp.Event.Timestamp, "timestamp must be server-assigned")
	assert.Len(t, playResp.Conns, 2, "event must fan out to every online member")

	// both members receive the event, sender included
	for _, client := range []*websocket.Conn{hostClient, guestClient} {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		var out struct {
			Type    string     `json:"type"`
			Payload VideoEvent `json:"payload"`
		}
		require.NoError(t, client.ReadJSON(&out))
		assert.Equal(t, EventTypePlay, out.Type)
		require.NotNil(t, out.Payload.Position)
		assert.Equal(t, 12.0, *out.Payload.Position)
	}

	player, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, roomModel.PlaybackStatePlaying, player.PlaybackState)
	assert.Equal(t, 12.0, player.Position)

	// change resets position and pauses
	videoURL := "https://example.com/v2"
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypeChange,
		VideoURL: &videoURL,
		SenderId: joinRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)

	player, err = service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, videoURL, player.VideoURL)
	assert.Equal(t, float64(0), player.Position)
	assert.Equal(t, roomModel.PlaybackStatePaused, player.PlaybackState)
}

func TestApplyVideoEventValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	before, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)

	// seek without a position
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypeSeek,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrInvalidEventPayload)

	// change without a video url
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypeChange,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrInvalidEventPayload)

	// negative position
	position := -1.0
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypePlay,
		Position: &position,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrInvalidEventPayload)

	// unknown type
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     "REWIND",
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrInvalidEventPayload)

	// rejected events must not touch the room
	after, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected event must leave the state unchanged")

	position = 1.0
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypeSeek,
		Position: &position,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   "missing",
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestEventDeliveryOrderMatchesApplication(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	serverConn, client := newWSPair(t)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          serverConn,
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	// two members hammer the room with opposing events
	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			position := float64(i)
			service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
				Type:     EventTypePlay,
				Position: &position,
				SenderId: createRoomResp.ParticipantId,
				RoomId:   createRoomResp.RoomId,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			position := float64(i)
			service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
				Type:     EventTypePause,
				Position: &position,
				SenderId: createRoomResp.ParticipantId,
				RoomId:   createRoomResp.RoomId,
			})
		}
	}()
	wg.Wait()

	player, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)

	var lastType string
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2*rounds; i++ {
		var out struct {
			Type string `json:"type"`
		}
		require.NoError(t, client.ReadJSON(&out))
		lastType = out.Type
	}

	// delivery order mirrors application order, so the last event on the
	// wire decides the stored state
	wantState := roomModel.PlaybackStatePaused
	if lastType == EventTypePlay {
		wantState = roomModel.PlaybackStatePlaying
	}
	assert.Equal(t, wantState, player.PlaybackState, "last delivered event must match the stored state")
}

func TestHostFailover(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{DisplayName: "host"})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	guest1Resp, err := service.JoinRoom(ctx, &JoinRoomParams{RoomId: createRoomResp.RoomId, DisplayName: "guest1"})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: guest1Resp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	guest2Resp, err := service.JoinRoom(ctx, &JoinRoomParams{RoomId: createRoomResp.RoomId, DisplayName: "guest2"})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: guest2Resp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	// host drops; the earliest-joined online guest takes over
	disconnectResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.True(t, disconnectResp.Left)
	assert.Equal(t, createRoomResp.ParticipantId, disconnectResp.LeftMember.Id)
	require.NotNil(t, disconnectResp.NewHost, "a successor must be promoted")
	assert.Equal(t, guest1Resp.ParticipantId, disconnectResp.NewHost.Id)
	assert.Equal(t, "HOST", disconnectResp.NewHost.Role)
	assert.Len(t, disconnectResp.Conns, 2)

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, guest1Resp.ParticipantId, roomState.HostId)

	hostCount := 0
	for _, m := range roomState.Members {
		if m.Role == "HOST" {
			hostCount++
		}
	}
	assert.Equal(t, 1, hostCount, "exactly one host after failover")
}

func TestHostlessRoomSurvives(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	// the only member drops; nobody is online to promote
	disconnectResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.True(t, disconnectResp.Left)
	assert.Nil(t, disconnectResp.NewHost)

	roomState, err := service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Empty(t, roomState.HostId, "room stays hostless until someone joins")

	// the next joiner claims the room
	joinRoomResp, err := service.JoinRoom(ctx, &JoinRoomParams{RoomId: createRoomResp.RoomId})
	require.NoError(t, err)
	assert.Equal(t, "HOST", joinRoomResp.Role)

	roomState, err = service.GetRoomState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, joinRoomResp.ParticipantId, roomState.HostId)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	first, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.True(t, first.Left)

	// second cleanup for the same participant is a no-op
	second, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.False(t, second.Left)
}

func TestLeaveRoomRemovesRecord(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          wsconn.New(&websocket.Conn{}),
		ParticipantId: createRoomResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	guestResp, err := service.JoinRoom(ctx, &JoinRoomParams{RoomId: createRoomResp.RoomId})
	require.NoError(t, err)
	guestConn := wsconn.New(&websocket.Conn{})
	_, err = service.ConnectMember(ctx, &ConnectMemberParams{
		Conn:          guestConn,
		ParticipantId: guestResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)

	leaveResp, err := service.LeaveRoom(ctx, &LeaveRoomParams{
		ParticipantId: guestResp.ParticipantId,
		RoomId:        createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.True(t, leaveResp.Left)
	assert.Len(t, leaveResp.Members, 1, "explicit leave removes the record")

	_, err = service.Session(guestConn)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSyncStateIsReadOnly(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{})
	require.NoError(t, err)

	position := 42.5
	_, err = service.ApplyVideoEvent(ctx, &ApplyVideoEventParams{
		Type:     EventTypePause,
		Position: &position,
		SenderId: createRoomResp.ParticipantId,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)

	first, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	second, err := service.SyncState(ctx, createRoomResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, first, second, "snapshots must not mutate the room")
	assert.Equal(t, 42.5, first.Position, "position is reported as last written")

	_, err = service.SyncState(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
