package inmemory

import (
	"log/slog"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtogether/server/internal/repository/connection"
	"github.com/watchtogether/server/pkg/wsconn"
)

func TestBindingLifecycle(t *testing.T) {
	repo := NewRepo(slog.Default())

	conn := wsconn.New(&websocket.Conn{})
	binding := connection.Binding{ParticipantId: "p1", RoomId: "r1"}
	require.NoError(t, repo.Add(conn, binding))

	got, err := repo.GetBinding(conn)
	require.NoError(t, err)
	assert.Equal(t, binding, got)

	gotConn, err := repo.GetConn("p1")
	require.NoError(t, err)
	assert.Same(t, conn, gotConn)

	// a second binding for the same conn or participant is rejected
	err = repo.Add(conn, connection.Binding{ParticipantId: "p2", RoomId: "r1"})
	assert.ErrorIs(t, err, connection.ErrAlreadyExists)
	err = repo.Add(wsconn.New(&websocket.Conn{}), binding)
	assert.ErrorIs(t, err, connection.ErrAlreadyExists)

	removed, err := repo.RemoveByConn(conn)
	require.NoError(t, err)
	assert.Equal(t, binding, removed)

	// both indexes are gone after removal
	_, err = repo.GetBinding(conn)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.GetConn("p1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestRemoveIsIdempotent(t *testing.T) {
	repo := NewRepo(slog.Default())

	conn := wsconn.New(&websocket.Conn{})
	require.NoError(t, repo.Add(conn, connection.Binding{ParticipantId: "p1", RoomId: "r1"}))

	removedConn, err := repo.RemoveByParticipantId("p1")
	require.NoError(t, err)
	assert.Same(t, conn, removedConn)

	// the racing cleanup path finds nothing
	_, err = repo.RemoveByParticipantId("p1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.RemoveByConn(conn)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}
