package model

import (
	"strconv"
	"strings"
)

const (
	maxRooms = 20
	maxSlots = 24
)

// Layout setting names, also used as ConfigurationError fields.
const (
	FieldRooms     = "rooms"
	FieldSlots     = "slots"
	FieldMaxVotes  = "max_votes"
	FieldRoomNames = "room_names"
)

// ParseCount parses a positive integer no larger than limit.
func ParseCount(field, input string, limit int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || (limit > 0 && n > limit) {
		return 0, &ConfigurationError{Field: field, Input: input}
	}
	return n, nil
}

// SetRoomCount resizes the room list, keeping existing names and generating new ones.
// Bookings for rooms that fall out of the list stay in the ledger.
func (s *State) SetRoomCount(input string) (int, error) {
	n, err := ParseCount(FieldRooms, input, maxRooms)
	if err != nil {
		return 0, err
	}
	rooms := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < len(s.Layout.Rooms) {
			rooms = append(rooms, s.Layout.Rooms[i])
			continue
		}
		name := RoomName(i + 1)
		for containsString(rooms, name) {
			name += "'"
		}
		rooms = append(rooms, name)
	}
	s.Layout.Rooms = rooms
	return n, nil
}

// SetSlotCount changes the number of slots per room.
func (s *State) SetSlotCount(input string) (int, error) {
	n, err := ParseCount(FieldSlots, input, maxSlots)
	if err != nil {
		return 0, err
	}
	s.Layout.SlotsPerRoom = n
	return n, nil
}

// SetMaxVotes changes the per-participant vote limit. Existing votes are kept as is.
func (s *State) SetMaxVotes(input string) (int, error) {
	n, err := ParseCount(FieldMaxVotes, input, 0)
	if err != nil {
		return 0, err
	}
	s.Layout.MaxVotes = n
	return n, nil
}

// SetRoomNames replaces the room list with the ';'-separated names in input.
func (s *State) SetRoomNames(input string) ([]string, error) {
	names := SplitEntries(input)
	if len(names) == 0 || len(names) > maxRooms {
		return nil, &ConfigurationError{Field: FieldRoomNames, Input: input}
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, &ConfigurationError{Field: FieldRoomNames, Input: input}
		}
		seen[n] = struct{}{}
	}
	s.Layout.Rooms = names
	return append([]string(nil), names...), nil
}

// SplitEntries splits a message on ';' and drops blank parts.
func SplitEntries(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
