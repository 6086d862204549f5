package room

type SetRoomParams struct {
	Id            string `json:"id"`
	InviteCode    string `json:"invite_code"`
	HostId        string `json:"host_id"`
	CreatedAt     int64  `json:"created_at"`
	LastSyncAt    int64  `json:"last_sync_at"`
	PlaybackState string `json:"playback_state"`
}

type UpdatePlaybackParams struct {
	RoomId        string  `json:"room_id"`
	VideoURL      string  `json:"video_url"`
	Position      float64 `json:"position"`
	PlaybackState string  `json:"playback_state"`
	LastSyncAt    int64   `json:"last_sync_at"`
}

type AddOnlineUserParams struct {
	RoomId        string `json:"room_id"`
	ParticipantId string `json:"participant_id"`
}

type RemoveOnlineUserParams struct {
	RoomId        string `json:"room_id"`
	ParticipantId string `json:"participant_id"`
}
