package app

import (
	"testing"

	"github.com/dkeye/RoonController/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestProjectNoZone(t *testing.T) {
	snap := Project(nil, true)

	if !snap.Connected {
		t.Fatalf("expected connected flag to pass through")
	}
	if snap.Zone != nil || snap.NowPlaying != nil || snap.Volume != nil || snap.Controls != nil {
		t.Fatalf("expected empty projection, got %+v", snap)
	}
	if snap.State != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", snap.State)
	}
}

func TestProjectNowPlaying(t *testing.T) {
	tests := []struct {
		name       string
		nowPlaying *domain.NowPlaying
		wantNil    bool
		title      string
		artist     string
		album      string
	}{
		{
			name:    "nothing playing",
			wantNil: true,
		},
		{
			name:       "no three line",
			nowPlaying: &domain.NowPlaying{ImageKey: "img"},
			title:      "Unknown",
			artist:     "Unknown Artist",
			album:      "",
		},
		{
			name:       "partial three line",
			nowPlaying: &domain.NowPlaying{ThreeLine: &domain.ThreeLine{Line1: "So What"}},
			title:      "So What",
			artist:     "Unknown Artist",
			album:      "",
		},
		{
			name: "full three line",
			nowPlaying: &domain.NowPlaying{
				ThreeLine:    &domain.ThreeLine{Line1: "So What", Line2: "Miles Davis", Line3: "Kind of Blue"},
				Length:       ptr(562),
				SeekPosition: ptr(30),
			},
			title:  "So What",
			artist: "Miles Davis",
			album:  "Kind of Blue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := zone("a", "Living Room", domain.StatePaused)
			z.NowPlaying = tt.nowPlaying
			snap := Project(&z, true)

			if snap.State != domain.StatePaused {
				t.Fatalf("expected state paused, got %s", snap.State)
			}
			if tt.wantNil {
				if snap.NowPlaying != nil {
					t.Fatalf("expected nil now playing, got %+v", snap.NowPlaying)
				}
				return
			}
			np := snap.NowPlaying
			if np == nil {
				t.Fatalf("expected now playing")
			}
			if np.Title != tt.title || np.Artist != tt.artist || np.Album != tt.album {
				t.Fatalf("expected %q/%q/%q, got %q/%q/%q", tt.title, tt.artist, tt.album, np.Title, np.Artist, np.Album)
			}
			if tt.nowPlaying.Length != nil && *np.Length != *tt.nowPlaying.Length {
				t.Fatalf("expected length %v, got %v", *tt.nowPlaying.Length, *np.Length)
			}
		})
	}
}

func TestProjectVolume(t *testing.T) {
	tests := []struct {
		name    string
		outputs []domain.Output
		wantNil bool
	}{
		{name: "no outputs", wantNil: true},
		{name: "no descriptor", outputs: []domain.Output{{OutputID: "o1"}}, wantNil: true},
		{
			name:    "fixed volume",
			outputs: []domain.Output{{OutputID: "o1", Volume: &domain.Volume{Type: domain.VolumeFixed}}},
			wantNil: true,
		},
		{
			name: "first output only",
			outputs: []domain.Output{
				{OutputID: "o1", Volume: &domain.Volume{Type: domain.VolumeContinuous, Min: 0, Max: 100, Value: 35, Step: 1}},
				{OutputID: "o2", Volume: &domain.Volume{Type: domain.VolumeContinuous, Value: 80}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := zone("a", "Living Room", domain.StatePlaying)
			z.Outputs = tt.outputs
			snap := Project(&z, true)

			if tt.wantNil {
				if snap.Volume != nil {
					t.Fatalf("expected nil volume, got %+v", snap.Volume)
				}
				return
			}
			if snap.Volume == nil || snap.Volume.Value != 35 || snap.Volume.Max != 100 {
				t.Fatalf("expected first output volume, got %+v", snap.Volume)
			}
		})
	}
}

func TestProjectControlsAndPurity(t *testing.T) {
	z := zone("a", "Living Room", domain.StatePlaying)
	z.IsPlayAllowed = false
	z.IsPauseAllowed = true
	z.IsNextAllowed = true
	z.IsSeekAllowed = true

	first := Project(&z, false)
	second := Project(&z, false)

	if first.Connected {
		t.Fatalf("expected disconnected flag")
	}
	c := first.Controls
	if c == nil || c.IsPlayAllowed || !c.IsPauseAllowed || c.IsPreviousAllowed || !c.IsNextAllowed || !c.IsSeekAllowed {
		t.Fatalf("expected flags verbatim, got %+v", c)
	}
	if first.Zone.ZoneID != "a" || first.Zone.DisplayName != "Living Room" {
		t.Fatalf("unexpected zone ref %+v", first.Zone)
	}
	if *first.Controls != *second.Controls || first.State != second.State {
		t.Fatalf("expected repeated projections to match")
	}
}
