package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/watchtogether/server/internal/repository/participant"
)

// repo is a map-backed participant registry used in tests and in
// single-node setups without a relational backend.
type repo struct {
	participants map[string]participant.Participant
	mu           sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		participants: make(map[string]participant.Participant),
	}
}

func (r *repo) SetParticipant(_ context.Context, params *participant.SetParticipantParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.participants[params.Id]; ok {
		existing.DisplayName = params.DisplayName
		existing.Role = params.Role
		r.participants[params.Id] = existing
		return nil
	}

	r.participants[params.Id] = participant.Participant{
		Id:          params.Id,
		RoomId:      params.RoomId,
		DisplayName: params.DisplayName,
		Role:        params.Role,
		JoinedAt:    params.JoinedAt,
	}

	return nil
}

func (r *repo) GetParticipant(_ context.Context, participantId string) (participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[participantId]
	if !ok {
		return participant.Participant{}, participant.ErrParticipantNotFound
	}

	return p, nil
}

func (r *repo) ListByRoom(_ context.Context, roomId string) ([]participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]participant.Participant, 0)
	for _, p := range r.participants {
		if p.RoomId == roomId {
			participants = append(participants, p)
		}
	}

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].Id < participants[j].Id
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})

	return participants, nil
}

func (r *repo) UpdateRole(_ context.Context, participantId, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantId]
	if !ok {
		return participant.ErrParticipantNotFound
	}

	p.Role = role
	r.participants[participantId] = p

	return nil
}

func (r *repo) RemoveParticipant(_ context.Context, participantId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[participantId]; !ok {
		return participant.ErrParticipantNotFound
	}

	delete(r.participants, participantId)

	return nil
}
