package room

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/watchtogether/server/internal/repository/connection"
	"github.com/watchtogether/server/pkg/wsconn"
)

func (s service) getMembers(ctx context.Context, roomId string) ([]Member, error) {
	participants, err := s.participantRepo.ListByRoom(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	online, err := s.roomRepo.GetOnlineUsers(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	members := make([]Member, 0, len(participants))
	for _, p := range participants {
		members = append(members, Member{
			Id:          p.Id,
			DisplayName: p.DisplayName,
			Role:        p.Role,
			IsOnline:    slices.Contains(online, p.Id),
		})
	}

	return members, nil
}

// getConnsByRoomId resolves the connections of every online participant.
// A presence entry without a live binding is skipped, not an error: the
// two drift apart during disconnect windows.
func (s service) getConnsByRoomId(ctx context.Context, roomId string) ([]*wsconn.Conn, error) {
	participantIds, err := s.roomRepo.GetOnlineUsers(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	conns := make([]*wsconn.Conn, 0, len(participantIds))
	for _, participantId := range participantIds {
		conn, err := s.connRepo.GetConn(participantId)
		if err != nil {
			if errors.Is(err, connection.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get conn: %w", err)
		}

		conns = append(conns, conn)
	}

	return conns, nil
}
