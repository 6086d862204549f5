package connection

import "errors"

var (
	ErrNotFound      = errors.New("binding not found")
	ErrAlreadyExists = errors.New("binding already exists")
)

// Binding is the ephemeral link between a live connection and a
// participant in a room. It exists exactly as long as the connection.
type Binding struct {
	ParticipantId string
	RoomId        string
}
