package participant

import (
	"errors"
	"time"
)

const (
	RoleHost  = "HOST"
	RoleGuest = "GUEST"
)

var ErrParticipantNotFound = errors.New("participant not found")

// Participant is the durable record of everyone who ever joined a room.
// It survives disconnects; only the session binding and presence entry
// are ephemeral.
type Participant struct {
	Id          string    `db:"id" json:"id"`
	RoomId      string    `db:"room_id" json:"room_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        string    `db:"role" json:"role"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

type SetParticipantParams struct {
	Id          string    `json:"id"`
	RoomId      string    `json:"room_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}
