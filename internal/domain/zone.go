// Package domain contains entity without logic, just meta-data
package domain

type ZoneID string

type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateLoading PlaybackState = "loading"
)

type VolumeType string

const (
	VolumeContinuous  VolumeType = "continuous"
	VolumeIncremental VolumeType = "incremental"
	VolumeFixed       VolumeType = "fixed"
)

// Volume is the controllable level of an output, as reported by the controller.
type Volume struct {
	Type    VolumeType `json:"type"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	Value   float64    `json:"value"`
	Step    float64    `json:"step"`
	IsMuted bool       `json:"is_muted"`
}

type Output struct {
	OutputID    string  `json:"output_id"`
	ZoneID      ZoneID  `json:"zone_id"`
	DisplayName string  `json:"display_name"`
	Volume      *Volume `json:"volume,omitempty"`
}

type ThreeLine struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
	Line3 string `json:"line3"`
}

type NowPlaying struct {
	SeekPosition *float64   `json:"seek_position,omitempty"`
	Length       *float64   `json:"length,omitempty"`
	ImageKey     string     `json:"image_key,omitempty"`
	ThreeLine    *ThreeLine `json:"three_line,omitempty"`
}

// Zone is replaced wholesale on every update; hold its id, never the value.
type Zone struct {
	ZoneID            ZoneID        `json:"zone_id"`
	DisplayName       string        `json:"display_name"`
	State             PlaybackState `json:"state"`
	Outputs           []Output      `json:"outputs,omitempty"`
	NowPlaying        *NowPlaying   `json:"now_playing,omitempty"`
	IsPlayAllowed     bool          `json:"is_play_allowed"`
	IsPauseAllowed    bool          `json:"is_pause_allowed"`
	IsPreviousAllowed bool          `json:"is_previous_allowed"`
	IsNextAllowed     bool          `json:"is_next_allowed"`
	IsSeekAllowed     bool          `json:"is_seek_allowed"`
}

// PrimaryOutput returns the first output, the only one whose volume is controlled.
func (z Zone) PrimaryOutput() (Output, bool) {
	if len(z.Outputs) == 0 {
		return Output{}, false
	}
	return z.Outputs[0], true
}

func (z Zone) Summary() ZoneSummary {
	return ZoneSummary{ZoneID: z.ZoneID, DisplayName: z.DisplayName, State: z.State}
}

// ZoneSummary is the display-safe listing entry sent to every client.
type ZoneSummary struct {
	ZoneID      ZoneID        `json:"zone_id"`
	DisplayName string        `json:"display_name"`
	State       PlaybackState `json:"state"`
}

// SeekChange is the lightweight progress update the controller sends between
// full zone changes.
type SeekChange struct {
	ZoneID             ZoneID   `json:"zone_id"`
	SeekPosition       *float64 `json:"seek_position"`
	QueueTimeRemaining float64  `json:"queue_time_remaining"`
}

// ZoneChanges is one incremental event from the controller subscription.
// Removed is always a list of ids, whatever shape the controller sent.
type ZoneChanges struct {
	Changed     []Zone
	Added       []Zone
	Removed     []ZoneID
	SeekChanged []SeekChange
}

func (c ZoneChanges) Empty() bool {
	return len(c.Changed) == 0 && len(c.Added) == 0 && len(c.Removed) == 0 && len(c.SeekChanged) == 0
}
