package room

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/watchtogether/server/internal/repository/connection"
	"github.com/watchtogether/server/internal/repository/participant"
	"github.com/watchtogether/server/internal/repository/room"
	"github.com/watchtogether/server/pkg/wsconn"
)

type HandshakeParams struct {
	AccessToken string
	RoomId      string
}

type HandshakeResponse struct {
	ParticipantId string
	RoomId        string
	DisplayName   string
}

// Handshake verifies the presented credential and resolves the identity
// behind it. It does not bind a connection; ConnectMember does.
func (s service) Handshake(ctx context.Context, params *HandshakeParams) (HandshakeResponse, error) {
	claims, err := s.parseAccessToken(params.AccessToken)
	if err != nil {
		return HandshakeResponse{}, ErrAuthenticationFailed
	}

	if params.RoomId != "" && claims.RoomId != params.RoomId {
		return HandshakeResponse{}, ErrAuthenticationFailed
	}

	p, err := s.participantRepo.GetParticipant(ctx, claims.ParticipantId)
	if err != nil || p.RoomId != claims.RoomId {
		return HandshakeResponse{}, ErrAuthenticationFailed
	}

	exists, err := s.roomRepo.RoomExists(ctx, claims.RoomId)
	if err != nil {
		return HandshakeResponse{}, fmt.Errorf("failed to check if room exists: %w", err)
	}
	if !exists {
		return HandshakeResponse{}, ErrRoomNotFound
	}

	return HandshakeResponse{
		ParticipantId: p.Id,
		RoomId:        p.RoomId,
		DisplayName:   p.DisplayName,
	}, nil
}

type SessionBinding struct {
	ParticipantId string
	RoomId        string
}

// Session resolves the binding behind a live connection. A connection
// whose binding is already gone gets ErrSessionNotFound and must
// re-handshake.
func (s service) Session(conn *wsconn.Conn) (SessionBinding, error) {
	binding, err := s.connRepo.GetBinding(conn)
	if err != nil {
		return SessionBinding{}, ErrSessionNotFound
	}

	return SessionBinding{
		ParticipantId: binding.ParticipantId,
		RoomId:        binding.RoomId,
	}, nil
}

type ConnectMemberParams struct {
	Conn          *wsconn.Conn
	ParticipantId string
	RoomId        string
}

type ConnectMemberResponse struct {
	JoinedMember Member
	Members      []Member
	Conns        []*wsconn.Conn
}

func (s service) ConnectMember(ctx context.Context, params *ConnectMemberParams) (ConnectMemberResponse, error) {
	binding := connection.Binding{
		ParticipantId: params.ParticipantId,
		RoomId:        params.RoomId,
	}
	if err := s.connRepo.Add(params.Conn, binding); err != nil {
		if !errors.Is(err, connection.ErrAlreadyExists) {
			return ConnectMemberResponse{}, fmt.Errorf("failed to add binding: %w", err)
		}

		// a reconnect raced the old binding's teardown; replace it
		if old, err := s.connRepo.RemoveByParticipantId(params.ParticipantId); err == nil && old.NetConn() != nil {
			old.Close()
		}
		if err := s.connRepo.Add(params.Conn, binding); err != nil {
			return ConnectMemberResponse{}, fmt.Errorf("failed to add binding: %w", err)
		}
	}

	if _, err := s.roomRepo.AddOnlineUser(ctx, &room.AddOnlineUserParams{
		RoomId:        params.RoomId,
		ParticipantId: params.ParticipantId,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to add online user", "error", err)
	}

	p, err := s.participantRepo.GetParticipant(ctx, params.ParticipantId)
	if err != nil {
		return ConnectMemberResponse{}, fmt.Errorf("failed to get participant: %w", err)
	}

	members, err := s.getMembers(ctx, params.RoomId)
	if err != nil {
		return ConnectMemberResponse{}, fmt.Errorf("failed to get members: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return ConnectMemberResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return ConnectMemberResponse{
		JoinedMember: Member{
			Id:          p.Id,
			DisplayName: p.DisplayName,
			Role:        p.Role,
			IsOnline:    true,
		},
		Members: members,
		Conns:   conns,
	}, nil
}

// RefreshPresence renews the sender's presence entry on keep-alive.
// Re-adding also restores an entry that already expired.
func (s service) RefreshPresence(ctx context.Context, roomId, participantId string) error {
	if _, err := s.roomRepo.AddOnlineUser(ctx, &room.AddOnlineUserParams{
		RoomId:        roomId,
		ParticipantId: participantId,
	}); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}

type DisconnectMemberParams struct {
	ParticipantId string
	RoomId        string
}

type DisconnectMemberResponse struct {
	// Left is false when the binding was already torn down by the other
	// cleanup path; everything else in the response is zero then.
	Left       bool
	LeftMember Member
	NewHost    *Member
	Members    []Member
	Conns      []*wsconn.Conn
}

// DisconnectMember is the supervisor's cleanup on transport close.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	return s.cleanup(ctx, params.ParticipantId, params.RoomId, false)
}

type LeaveRoomParams struct {
	ParticipantId string
	RoomId        string
}

// LeaveRoom is the explicit variant: same cleanup, but the durable
// participant record is removed too.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (DisconnectMemberResponse, error) {
	return s.cleanup(ctx, params.ParticipantId, params.RoomId, true)
}

func (s service) cleanup(ctx context.Context, participantId, roomId string, removeRecord bool) (DisconnectMemberResponse, error) {
	conn, err := s.connRepo.RemoveByParticipantId(participantId)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			s.logger.DebugContext(ctx, "cleanup already ran", "participant_id", participantId)
			return DisconnectMemberResponse{}, nil
		}
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove binding: %w", err)
	}
	if conn.NetConn() != nil {
		conn.Close()
	}

	leftMember := Member{Id: participantId}
	if p, err := s.participantRepo.GetParticipant(ctx, participantId); err == nil {
		leftMember.DisplayName = p.DisplayName
		leftMember.Role = p.Role
	}

	if _, err := s.roomRepo.RemoveOnlineUser(ctx, &room.RemoveOnlineUserParams{
		RoomId:        roomId,
		ParticipantId: participantId,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to remove online user", "error", err)
	}

	unlock := s.roomLocks.lock(roomId)
	newHost, err := s.failoverHost(ctx, roomId, participantId)
	unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "host failover failed", "room_id", roomId, "error", err)
	}

	if removeRecord {
		if err := s.participantRepo.RemoveParticipant(ctx, participantId); err != nil &&
			!errors.Is(err, participant.ErrParticipantNotFound) {
			s.logger.WarnContext(ctx, "failed to remove participant", "error", err)
		}
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get members: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	s.logger.InfoContext(ctx, "participant disconnected", "room_id", roomId, "participant_id", participantId)

	return DisconnectMemberResponse{
		Left:       true,
		LeftMember: leftMember,
		NewHost:    newHost,
		Members:    members,
		Conns:      conns,
	}, nil
}

// failoverHost reassigns the host role when the registered host leaves.
// The successor is the earliest-joined participant still online; with
// nobody online the room is left hostless for the TTL to reclaim.
func (s service) failoverHost(ctx context.Context, roomId, leavingId string) (*Member, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.HostId != leavingId {
		return nil, nil
	}

	participants, err := s.participantRepo.ListByRoom(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	online, err := s.roomRepo.GetOnlineUsers(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	var successor *participant.Participant
	for i := range participants {
		p := participants[i]
		if p.Id != leavingId && slices.Contains(online, p.Id) {
			successor = &p
			break
		}
	}

	if err := s.participantRepo.UpdateRole(ctx, leavingId, participant.RoleGuest); err != nil &&
		!errors.Is(err, participant.ErrParticipantNotFound) {
		return nil, fmt.Errorf("failed to demote host: %w", err)
	}

	if successor == nil {
		if err := s.roomRepo.UpdateHost(ctx, roomId, ""); err != nil {
			return nil, fmt.Errorf("failed to clear host: %w", err)
		}

		s.logger.InfoContext(ctx, "room left hostless", "room_id", roomId)
		return nil, nil
	}

	if err := s.participantRepo.UpdateRole(ctx, successor.Id, participant.RoleHost); err != nil {
		return nil, fmt.Errorf("failed to promote successor: %w", err)
	}

	if err := s.roomRepo.UpdateHost(ctx, roomId, successor.Id); err != nil {
		return nil, fmt.Errorf("failed to update host: %w", err)
	}

	s.logger.InfoContext(ctx, "host failover", "room_id", roomId, "new_host_id", successor.Id)

	return &Member{
		Id:          successor.Id,
		DisplayName: successor.DisplayName,
		Role:        participant.RoleHost,
		IsOnline:    true,
	}, nil
}
