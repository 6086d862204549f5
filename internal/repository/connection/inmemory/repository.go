package inmemory

import (
	"log/slog"
	"sync"

	"github.com/watchtogether/server/internal/repository/connection"
	"github.com/watchtogether/server/pkg/wsconn"
)

type repo struct {
	bindings map[*wsconn.Conn]connection.Binding
	conns    map[string]*wsconn.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		bindings: make(map[*wsconn.Conn]connection.Binding),
		conns:    make(map[string]*wsconn.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn *wsconn.Conn, binding connection.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("connection.inmemory.Add", "participant_id", binding.ParticipantId, "room_id", binding.RoomId)
	if _, ok := r.bindings[conn]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.conns[binding.ParticipantId]; ok {
		return connection.ErrAlreadyExists
	}

	r.bindings[conn] = binding
	r.conns[binding.ParticipantId] = conn

	return nil
}

// RemoveByConn tears down the binding for a connection. Removing an
// unknown connection returns ErrNotFound; callers treat it as a no-op
// since disconnect detection and explicit leave race to get here.
func (r *repo) RemoveByConn(conn *wsconn.Conn) (connection.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[conn]
	if !ok {
		return connection.Binding{}, connection.ErrNotFound
	}

	delete(r.bindings, conn)
	delete(r.conns, binding.ParticipantId)

	r.logger.Debug("connection.inmemory.RemoveByConn", "participant_id", binding.ParticipantId)
	return binding, nil
}

func (r *repo) RemoveByParticipantId(participantId string) (*wsconn.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[participantId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.bindings, conn)
	delete(r.conns, participantId)

	r.logger.Debug("connection.inmemory.RemoveByParticipantId", "participant_id", participantId)
	return conn, nil
}

func (r *repo) GetConn(participantId string) (*wsconn.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[participantId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetBinding(conn *wsconn.Conn) (connection.Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.bindings[conn]
	if !ok {
		return connection.Binding{}, connection.ErrNotFound
	}

	return binding, nil
}
