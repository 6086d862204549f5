package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchtogether/server/internal/repository/participant"
	"github.com/watchtogether/server/internal/repository/room"
)

const inviteCodeLength = 6

type CreateRoomParams struct {
	DisplayName string
}

type CreateRoomResponse struct {
	RoomId        string
	InviteCode    string
	ParticipantId string
	AccessToken   string
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := uuid.NewString()
	inviteCode := s.generator.GenerateRandomString(inviteCodeLength)
	hostId := uuid.NewString()
	now := time.Now()

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		Id:            roomId,
		InviteCode:    inviteCode,
		HostId:        hostId,
		PlaybackState: room.PlaybackStateStopped,
		LastSyncAt:    now.UnixMilli(),
		CreatedAt:     now.UnixMilli(),
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	displayName := params.DisplayName
	if displayName == "" {
		displayName = "Host"
	}

	if err := s.participantRepo.SetParticipant(ctx, &participant.SetParticipantParams{
		Id:          hostId,
		RoomId:      roomId,
		DisplayName: displayName,
		Role:        participant.RoleHost,
		JoinedAt:    now,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set participant: %w", err)
	}

	accessToken, err := s.generateAccessToken(hostId, roomId)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", roomId, "host_id", hostId)

	return CreateRoomResponse{
		RoomId:        roomId,
		InviteCode:    inviteCode,
		ParticipantId: hostId,
		AccessToken:   accessToken,
	}, nil
}

type JoinRoomParams struct {
	RoomId      string
	DisplayName string
	// AccessToken, when present, identifies a returning participant;
	// joining again with the same identity must not duplicate the record.
	AccessToken string
}

type JoinRoomResponse struct {
	RoomId        string
	ParticipantId string
	DisplayName   string
	Role          string
	AccessToken   string
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	unlock := s.roomLocks.lock(params.RoomId)
	defer unlock()

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return JoinRoomResponse{}, ErrRoomNotFound
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	if params.AccessToken != "" {
		if resp, ok := s.rejoin(ctx, &rm, params); ok {
			return resp, nil
		}
	}

	participantId := uuid.NewString()
	displayName := params.DisplayName
	if displayName == "" {
		displayName = "Guest"
	}

	// a hostless room is claimed by the next joiner
	role := participant.RoleGuest
	if rm.HostId == "" {
		role = participant.RoleHost
	}

	if err := s.participantRepo.SetParticipant(ctx, &participant.SetParticipantParams{
		Id:          participantId,
		RoomId:      params.RoomId,
		DisplayName: displayName,
		Role:        role,
		JoinedAt:    time.Now(),
	}); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to set participant: %w", err)
	}

	if role == participant.RoleHost {
		if err := s.roomRepo.UpdateHost(ctx, params.RoomId, participantId); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to update host: %w", err)
		}
	}

	accessToken, err := s.generateAccessToken(participantId, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "participant joined", "room_id", params.RoomId, "participant_id", participantId, "role", role)

	return JoinRoomResponse{
		RoomId:        params.RoomId,
		ParticipantId: participantId,
		DisplayName:   displayName,
		Role:          role,
		AccessToken:   accessToken,
	}, nil
}

// rejoin restores an existing identity presented via access token. The
// registered host keeps the HOST role across reconnects.
func (s service) rejoin(ctx context.Context, rm *room.Room, params *JoinRoomParams) (JoinRoomResponse, bool) {
	claims, err := s.parseAccessToken(params.AccessToken)
	if err != nil || claims.RoomId != params.RoomId {
		return JoinRoomResponse{}, false
	}

	p, err := s.participantRepo.GetParticipant(ctx, claims.ParticipantId)
	if err != nil || p.RoomId != params.RoomId {
		return JoinRoomResponse{}, false
	}

	if rm.HostId == p.Id && p.Role != participant.RoleHost {
		if err := s.participantRepo.UpdateRole(ctx, p.Id, participant.RoleHost); err != nil {
			s.logger.WarnContext(ctx, "failed to restore host role", "error", err)
		} else {
			p.Role = participant.RoleHost
		}
	}

	// the join-time rule applies to returning identities too
	if rm.HostId == "" {
		if err := s.participantRepo.UpdateRole(ctx, p.Id, participant.RoleHost); err != nil {
			s.logger.WarnContext(ctx, "failed to restore host role", "error", err)
		} else if err := s.roomRepo.UpdateHost(ctx, params.RoomId, p.Id); err != nil {
			s.logger.WarnContext(ctx, "failed to update host", "error", err)
		} else {
			p.Role = participant.RoleHost
		}
	}

	s.logger.InfoContext(ctx, "participant rejoined", "room_id", params.RoomId, "participant_id", p.Id)

	return JoinRoomResponse{
		RoomId:        params.RoomId,
		ParticipantId: p.Id,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		AccessToken:   params.AccessToken,
	}, true
}

func (s service) GetRoomState(ctx context.Context, roomId string) (RoomState, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return RoomState{}, ErrRoomNotFound
		}
		return RoomState{}, fmt.Errorf("failed to get room: %w", err)
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get members: %w", err)
	}

	return RoomState{
		RoomId:     rm.Id,
		InviteCode: rm.InviteCode,
		HostId:     rm.HostId,
		Player: Player{
			VideoURL:      rm.VideoURL,
			Position:      rm.Position,
			PlaybackState: rm.PlaybackState,
			LastSyncAt:    rm.LastSyncAt,
		},
		Members: members,
	}, nil
}
