package room

const (
	EventTypePlay        = "PLAY"
	EventTypePause       = "PAUSE"
	EventTypeSeek        = "SEEK"
	EventTypeChange      = "CHANGE"
	EventTypeSyncState   = "SYNC_STATE"
	EventTypeRequestSync = "REQUEST_SYNC"
)

type Member struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsOnline    bool   `json:"is_online"`
}

type Player struct {
	VideoURL      string  `json:"video_url"`
	Position      float64 `json:"position"`
	PlaybackState string  `json:"playback_state"`
	LastSyncAt    int64   `json:"last_sync_at"`
}

type RoomState struct {
	RoomId     string   `json:"room_id"`
	InviteCode string   `json:"invite_code"`
	HostId     string   `json:"host_id"`
	Player     Player   `json:"player"`
	Members    []Member `json:"members"`
}

// VideoEvent is the room-scoped wire shape. Position and VideoURL are
// optional depending on the type; the timestamp is server-assigned.
type VideoEvent struct {
	Type          string   `json:"type"`
	ParticipantId string   `json:"participant_id"`
	RoomId        string   `json:"room_id"`
	Position      *float64 `json:"position,omitempty"`
	VideoURL      *string  `json:"video_url,omitempty"`
	Timestamp     int64    `json:"timestamp"`
}
