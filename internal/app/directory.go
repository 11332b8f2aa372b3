package app

import (
	"slices"

	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory holds the zones reported by the controller in arrival order.
//
// Added zones are appended without checking for an existing id, so the same id
// may briefly appear more than once until a later change or snapshot settles
// it. Every read resolves duplicates to the most recently appended entry.
//
// Directory is not safe for concurrent use; the orchestrator loop owns it.
type Directory struct {
	zones []domain.Zone
}

func NewDirectory() *Directory {
	return &Directory{}
}

// ApplySnapshot replaces the whole directory.
func (d *Directory) ApplySnapshot(zones []domain.Zone) {
	d.zones = slices.Clone(zones)
	log.Info().Str("module", "app.directory").Int("zones", len(d.zones)).Msg("applied snapshot")
}

// ApplyChanged replaces, in place, every entry whose id matches a changed zone.
// Unknown ids are ignored. It returns the ids that matched, in input order.
func (d *Directory) ApplyChanged(changed []domain.Zone) []domain.ZoneID {
	affected := make([]domain.ZoneID, 0, len(changed))
	for _, z := range changed {
		hit := false
		for i := range d.zones {
			if d.zones[i].ZoneID == z.ZoneID {
				d.zones[i] = z
				hit = true
			}
		}
		if !hit {
			log.Debug().Str("module", "app.directory").Str("zone", string(z.ZoneID)).Msg("changed zone not in directory")
			continue
		}
		if !slices.Contains(affected, z.ZoneID) {
			affected = append(affected, z.ZoneID)
		}
	}
	return affected
}

// ApplyAdded appends zones unconditionally.
func (d *Directory) ApplyAdded(added []domain.Zone) {
	d.zones = append(d.zones, added...)
}

// ApplyRemoved drops every entry whose id is listed.
func (d *Directory) ApplyRemoved(ids []domain.ZoneID) {
	if len(ids) == 0 {
		return
	}
	d.zones = slices.DeleteFunc(d.zones, func(z domain.Zone) bool {
		return slices.Contains(ids, z.ZoneID)
	})
}

// ApplySeek updates the seek position of the now playing item of a zone.
// A zone with nothing playing is left alone.
func (d *Directory) ApplySeek(change domain.SeekChange) bool {
	hit := false
	for i := range d.zones {
		z := &d.zones[i]
		if z.ZoneID != change.ZoneID || z.NowPlaying == nil {
			continue
		}
		np := *z.NowPlaying
		np.SeekPosition = change.SeekPosition
		z.NowPlaying = &np
		hit = true
	}
	return hit
}

func (d *Directory) Clear() {
	d.zones = nil
}

// List returns one summary per zone id. Where an id is duplicated the most
// recently appended entry wins and takes that entry's position.
func (d *Directory) List() []domain.ZoneSummary {
	seen := make(map[domain.ZoneID]struct{}, len(d.zones))
	out := make([]domain.ZoneSummary, 0, len(d.zones))
	for i := len(d.zones) - 1; i >= 0; i-- {
		z := d.zones[i]
		if _, ok := seen[z.ZoneID]; ok {
			continue
		}
		seen[z.ZoneID] = struct{}{}
		out = append(out, z.Summary())
	}
	slices.Reverse(out)
	return out
}

// Find returns the entry List would keep for id.
func (d *Directory) Find(id domain.ZoneID) (domain.Zone, bool) {
	for i := len(d.zones) - 1; i >= 0; i-- {
		if d.zones[i].ZoneID == id {
			return d.zones[i], true
		}
	}
	return domain.Zone{}, false
}

func (d *Directory) Has(id domain.ZoneID) bool {
	_, ok := d.Find(id)
	return ok
}

// First returns the id of the first listed zone: the id whose latest entry
// comes earliest.
func (d *Directory) First() (domain.ZoneID, bool) {
	var (
		first domain.ZoneID
		found bool
	)
	seen := make(map[domain.ZoneID]struct{}, len(d.zones))
	for i := len(d.zones) - 1; i >= 0; i-- {
		id := d.zones[i].ZoneID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		first, found = id, true
	}
	return first, found
}

// Len counts distinct zone ids.
func (d *Directory) Len() int {
	seen := make(map[domain.ZoneID]struct{}, len(d.zones))
	for _, z := range d.zones {
		seen[z.ZoneID] = struct{}{}
	}
	return len(seen)
}
