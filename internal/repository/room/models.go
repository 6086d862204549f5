package room

const (
	PlaybackStatePlaying = "PLAYING"
	PlaybackStatePaused  = "PAUSED"
	PlaybackStateStopped = "STOPPED"
)

type Room struct {
	Id            string  `redis:"id"`
	InviteCode    string  `redis:"invite_code"`
	HostId        string  `redis:"host_id"`
	VideoURL      string  `redis:"video_url"`
	Position      float64 `redis:"position"`
	PlaybackState string  `redis:"playback_state"`
	LastSyncAt    int64   `redis:"last_sync_at"`
	CreatedAt     int64   `redis:"created_at"`
}
