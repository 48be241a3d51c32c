// Package store converts the shared state to and from its persisted blob and
// hands the bytes to a storage backend.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"topicvote/internal/model"
)

// CurrentVersion is written by Serialize.
const CurrentVersion = 2

type envelope struct {
	Version         int                       `json:"version"`
	Topics          []string                  `json:"topics"`
	Votes           map[string][]string       `json:"votes"`
	Bookings        map[string]map[int]string `json:"bookings"`
	Layout          model.Layout              `json:"layout"`
	CatalogRevision int                       `json:"catalog_revision"`
}

// legacy covers every shape the blob has had. Version 0 and 1 had no layout
// object, only bare counters, and stored bookings loosely.
type legacy struct {
	Version         int                 `json:"version"`
	Topics          []string            `json:"topics"`
	Votes           map[string][]string `json:"votes"`
	Bookings        map[string]any      `json:"bookings"`
	Layout          *model.Layout       `json:"layout"`
	NumRooms        int                 `json:"num_rooms"`
	NumSlots        int                 `json:"num_slots"`
	MaxVotes        int                 `json:"max_votes"`
	CatalogRevision int                 `json:"catalog_revision"`
}

// Migration describes what Load had to fix.
type Migration struct {
	FromVersion  int
	DroppedSlots int
}

// Migrated reports whether the blob was older than CurrentVersion.
func (m Migration) Migrated() bool {
	return m.FromVersion < CurrentVersion
}

// Serialize encodes s in the current format.
func Serialize(s *model.State) ([]byte, error) {
	env := envelope{
		Version:         CurrentVersion,
		Topics:          s.Topics,
		Votes:           s.Votes,
		Bookings:        s.Bookings,
		Layout:          s.Layout,
		CatalogRevision: s.CatalogRevision,
	}
	if env.Topics == nil {
		env.Topics = []string{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Load decodes any historical blob into a normalized state. An empty blob
// yields an empty state with the default layout.
func Load(blob []byte, defaults model.Layout) (*model.State, Migration, error) {
	if len(strings.TrimSpace(string(blob))) == 0 {
		return model.NewState(defaults), Migration{FromVersion: CurrentVersion}, nil
	}

	var raw legacy
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, Migration{}, fmt.Errorf("decode state: %w", err)
	}

	mig := Migration{FromVersion: raw.Version}
	s := model.NewState(migrateLayout(raw, defaults))
	s.CatalogRevision = raw.CatalogRevision
	s.AddTopics(raw.Topics...)
	s.CatalogRevision = raw.CatalogRevision

	for participant, selection := range raw.Votes {
		if v := dedupe(selection); len(v) > 0 {
			s.Votes[participant] = v
		}
	}

	var dropped int
	s.Bookings, dropped = NormalizeBookings(raw.Bookings)
	mig.DroppedSlots = dropped
	return s, mig, nil
}

func migrateLayout(raw legacy, defaults model.Layout) model.Layout {
	var l model.Layout
	if raw.Layout != nil {
		l = *raw.Layout
	} else {
		rooms := raw.NumRooms
		if rooms <= 0 {
			rooms = len(defaults.Rooms)
		}
		l = model.NewLayout(rooms, raw.NumSlots, raw.MaxVotes)
		if raw.NumRooms <= 0 {
			l.Rooms = append([]string(nil), defaults.Rooms...)
		}
	}
	l.Rooms = dedupe(l.Rooms)
	if len(l.Rooms) == 0 {
		l.Rooms = append([]string(nil), defaults.Rooms...)
	}
	if l.SlotsPerRoom <= 0 {
		l.SlotsPerRoom = defaults.SlotsPerRoom
	}
	if l.MaxVotes <= 0 {
		l.MaxVotes = defaults.MaxVotes
	}
	return l
}

// NormalizeBookings turns every historical per-room booking shape into a
// slot-to-label map. Accepted shapes are a bare list of slot numbers and a map
// from slot (number or numeric string) to label; a missing or blank label
// becomes model.ReservedLabel. Unparseable slots are dropped and counted.
// Running it on its own output returns an equal map.
func NormalizeBookings(in map[string]any) (map[string]map[int]string, int) {
	out := make(map[string]map[int]string, len(in))
	dropped := 0
	for room, v := range in {
		slots := make(map[int]string)
		add := func(key any, label any) {
			slot, ok := parseSlot(key)
			if !ok {
				dropped++
				return
			}
			slots[slot] = labelOf(label)
		}

		switch t := v.(type) {
		case []any:
			for _, k := range t {
				add(k, nil)
			}
		case []int:
			for _, k := range t {
				add(k, nil)
			}
		case []string:
			for _, k := range t {
				add(k, nil)
			}
		case map[string]any:
			for k, label := range t {
				add(k, label)
			}
		case map[string]string:
			for k, label := range t {
				add(k, label)
			}
		case map[int]string:
			for k, label := range t {
				add(k, label)
			}
		case map[int]any:
			for k, label := range t {
				add(k, label)
			}
		case nil:
		default:
			dropped++
		}

		if len(slots) > 0 {
			out[room] = slots
		}
	}
	return out, dropped
}

func parseSlot(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, t >= 1
	case int64:
		return int(t), t >= 1
	case float64:
		if t < 1 || t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil && n >= 1
	}
	return 0, false
}

func labelOf(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	if s = strings.TrimSpace(s); s == "" {
		return model.ReservedLabel
	}
	return s
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
