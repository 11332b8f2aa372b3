package domain

// StateSnapshot is what a client renders for its selected zone.
// Values are derived on demand and never stored.
type StateSnapshot struct {
	Connected  bool            `json:"connected"`
	Zone       *ZoneRef        `json:"zone"`
	NowPlaying *NowPlayingView `json:"nowPlaying"`
	State      PlaybackState   `json:"state"`
	Controls   *Controls       `json:"controls,omitempty"`
	Volume     *VolumeView     `json:"volume"`
}

type ZoneRef struct {
	ZoneID      ZoneID `json:"zone_id"`
	DisplayName string `json:"display_name"`
}

type NowPlayingView struct {
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	Album        string   `json:"album"`
	ImageKey     string   `json:"image_key,omitempty"`
	Length       *float64 `json:"length,omitempty"`
	SeekPosition *float64 `json:"seek_position,omitempty"`
}

type Controls struct {
	IsPlayAllowed     bool `json:"is_play_allowed"`
	IsPauseAllowed    bool `json:"is_pause_allowed"`
	IsPreviousAllowed bool `json:"is_previous_allowed"`
	IsNextAllowed     bool `json:"is_next_allowed"`
	IsSeekAllowed     bool `json:"is_seek_allowed"`
}

type VolumeView struct {
	Value   float64    `json:"value"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	Step    float64    `json:"step"`
	IsMuted bool       `json:"is_muted"`
	Type    VolumeType `json:"type"`
}
