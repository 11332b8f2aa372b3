package app

import "github.com/dkeye/RoonController/internal/domain"

const (
	unknownTitle  = "Unknown"
	unknownArtist = "Unknown Artist"
)

// Project derives the client-facing state for zone. A nil zone yields the
// stopped, empty state. Project has no side effects.
func Project(zone *domain.Zone, connected bool) domain.StateSnapshot {
	if zone == nil {
		return domain.StateSnapshot{
			Connected: connected,
			State:     domain.StateStopped,
		}
	}

	return domain.StateSnapshot{
		Connected: connected,
		Zone: &domain.ZoneRef{
			ZoneID:      zone.ZoneID,
			DisplayName: zone.DisplayName,
		},
		NowPlaying: projectNowPlaying(zone.NowPlaying),
		State:      zone.State,
		Controls: &domain.Controls{
			IsPlayAllowed:     zone.IsPlayAllowed,
			IsPauseAllowed:    zone.IsPauseAllowed,
			IsPreviousAllowed: zone.IsPreviousAllowed,
			IsNextAllowed:     zone.IsNextAllowed,
			IsSeekAllowed:     zone.IsSeekAllowed,
		},
		Volume: projectVolume(*zone),
	}
}

func projectNowPlaying(np *domain.NowPlaying) *domain.NowPlayingView {
	if np == nil {
		return nil
	}
	view := &domain.NowPlayingView{
		Title:        unknownTitle,
		Artist:       unknownArtist,
		ImageKey:     np.ImageKey,
		Length:       np.Length,
		SeekPosition: np.SeekPosition,
	}
	if tl := np.ThreeLine; tl != nil {
		if tl.Line1 != "" {
			view.Title = tl.Line1
		}
		if tl.Line2 != "" {
			view.Artist = tl.Line2
		}
		view.Album = tl.Line3
	}
	return view
}

// projectVolume reads the first output only. Fixed outputs have nothing to
// control and project as nil.
func projectVolume(zone domain.Zone) *domain.VolumeView {
	out, ok := zone.PrimaryOutput()
	if !ok || out.Volume == nil || out.Volume.Type == domain.VolumeFixed {
		return nil
	}
	v := out.Volume
	return &domain.VolumeView{
		Value:   v.Value,
		Min:     v.Min,
		Max:     v.Max,
		Step:    v.Step,
		IsMuted: v.IsMuted,
		Type:    v.Type,
	}
}
