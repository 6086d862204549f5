package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/watchtogether/server/internal/repository/participant"
)

type repo struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewRepo(db *sqlx.DB, logger *slog.Logger) *repo {
	return &repo{
		db:     db,
		logger: logger,
	}
}

// SetParticipant upserts by id, so a participant re-joining with the
// same identity never produces a duplicate record.
func (r repo) SetParticipant(ctx context.Context, params *participant.SetParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	query := `
		INSERT INTO participants (id, room_id, display_name, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    role         = EXCLUDED.role
	`
	if _, err := r.db.ExecContext(ctx, query,
		params.Id, params.RoomId, params.DisplayName, params.Role, params.JoinedAt,
	); err != nil {
		return fmt.Errorf("failed to set participant: %w", err)
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, participantId string) (participant.Participant, error) {
	r.logger.DebugContext(ctx, "called", "participant_id", participantId)

	var p participant.Participant
	query := `SELECT id, room_id, display_name, role, joined_at FROM participants WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, participantId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return participant.Participant{}, participant.ErrParticipantNotFound
		}
		return participant.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	return p, nil
}

func (r repo) ListByRoom(ctx context.Context, roomId string) ([]participant.Participant, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	participants := []participant.Participant{}
	query := `
		SELECT id, room_id, display_name, role, joined_at
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &participants, query, roomId); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}

func (r repo) UpdateRole(ctx context.Context, participantId, role string) error {
	r.logger.DebugContext(ctx, "called", "participant_id", participantId, "role", role)

	res, err := r.db.ExecContext(ctx, `UPDATE participants SET role = $1 WHERE id = $2`, role, participantId)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if affected == 0 {
		return participant.ErrParticipantNotFound
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, participantId string) error {
	r.logger.DebugContext(ctx, "called", "participant_id", participantId)

	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, participantId)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if affected == 0 {
		return participant.ErrParticipantNotFound
	}

	return nil
}
