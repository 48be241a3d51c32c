// Package model holds the durable state shared by every interaction flow:
// the topic catalog, the votes, the booking ledger and the room layout.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// EmptyLabel marks a schedule slot that received neither a booking nor a topic.
	EmptyLabel = "Empty"
	// ReservedLabel is used for bookings persisted without a label.
	ReservedLabel = "Reserved"

	DefaultRooms    = 3
	DefaultSlots    = 4
	DefaultMaxVotes = 4
)

// Layout is the room grid the allocator fills.
type Layout struct {
	Rooms        []string `json:"rooms"`
	SlotsPerRoom int      `json:"slots_per_room"`
	MaxVotes     int      `json:"max_votes"`
}

// RoomName returns the generated name for the 1-based room number n.
func RoomName(n int) string {
	return fmt.Sprintf("Зал %d", n)
}

// NewLayout builds a layout with generated room names.
func NewLayout(rooms, slots, maxVotes int) Layout {
	l := Layout{SlotsPerRoom: slots, MaxVotes: maxVotes}
	for i := 1; i <= rooms; i++ {
		l.Rooms = append(l.Rooms, RoomName(i))
	}
	return l
}

// DefaultLayout is used when nothing was configured yet.
func DefaultLayout() Layout {
	return NewLayout(DefaultRooms, DefaultSlots, DefaultMaxVotes)
}

// RoomIndex returns the position of room in the layout or -1.
func (l Layout) RoomIndex(room string) int {
	for i, r := range l.Rooms {
		if r == room {
			return i
		}
	}
	return -1
}

// InBounds reports whether (room, slot) addresses a cell of the current grid.
func (l Layout) InBounds(room string, slot int) bool {
	return l.RoomIndex(room) >= 0 && slot >= 1 && slot <= l.SlotsPerRoom
}

// Capacity is the number of cells in the grid.
func (l Layout) Capacity() int {
	return len(l.Rooms) * l.SlotsPerRoom
}

func (l Layout) clone() Layout {
	out := l
	out.Rooms = append([]string(nil), l.Rooms...)
	return out
}

// State is the process-wide store. It is not safe for concurrent use;
// callers serialize access through a single writer.
type State struct {
	Topics          []string
	Votes           map[string][]string
	Bookings        map[string]map[int]string
	Layout          Layout
	CatalogRevision int
}

// NewState returns an empty store with the given layout.
func NewState(layout Layout) *State {
	return &State{
		Votes:    make(map[string][]string),
		Bookings: make(map[string]map[int]string),
		Layout:   layout,
	}
}

// ParticipantKey is the string form of a participant id used as vote key.
func ParticipantKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Topics:          append([]string(nil), s.Topics...),
		Votes:           make(map[string][]string, len(s.Votes)),
		Bookings:        make(map[string]map[int]string, len(s.Bookings)),
		Layout:          s.Layout.clone(),
		CatalogRevision: s.CatalogRevision,
	}
	for k, v := range s.Votes {
		out.Votes[k] = append([]string(nil), v...)
	}
	for room, slots := range s.Bookings {
		m := make(map[int]string, len(slots))
		for slot, label := range slots {
			m[slot] = label
		}
		out.Bookings[room] = m
	}
	return out
}

// TopicIndex returns the catalog position of topic or -1.
func (s *State) TopicIndex(topic string) int {
	for i, t := range s.Topics {
		if t == topic {
			return i
		}
	}
	return -1
}

// HasTopic reports whether topic is in the catalog.
func (s *State) HasTopic(topic string) bool {
	return s.TopicIndex(topic) >= 0
}

// TopicAt resolves a catalog index captured at revision rev.
func (s *State) TopicAt(index, rev int) (string, error) {
	if rev != s.CatalogRevision || index < 0 || index >= len(s.Topics) {
		return "", ErrUnknownSelection
	}
	return s.Topics[index], nil
}

// AddTopics appends entries that are non-blank and not yet present, in order.
// It returns the entries actually added.
func (s *State) AddTopics(entries ...string) []string {
	var added []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || s.HasTopic(e) {
			continue
		}
		s.Topics = append(s.Topics, e)
		added = append(added, e)
	}
	if len(added) > 0 {
		s.CatalogRevision++
	}
	return added
}

// RemoveTopics deletes exactly the given topics and returns how many were removed.
// Votes for removed topics are left in place; the tally ignores them.
func (s *State) RemoveTopics(topics map[string]struct{}) int {
	kept := s.Topics[:0:0]
	for _, t := range s.Topics {
		if _, drop := topics[t]; !drop {
			kept = append(kept, t)
		}
	}
	removed := len(s.Topics) - len(kept)
	if removed > 0 {
		s.Topics = kept
		s.CatalogRevision++
	}
	return removed
}

// ClearTopics empties the catalog together with the votes cast for it.
func (s *State) ClearTopics() {
	s.Topics = nil
	s.Votes = make(map[string][]string)
	s.CatalogRevision++
}

// ClearVotes drops every vote.
func (s *State) ClearVotes() {
	s.Votes = make(map[string][]string)
}

// ClearBookings drops the whole ledger.
func (s *State) ClearBookings() {
	s.Bookings = make(map[string]map[int]string)
}

// Vote returns a copy of the participant's committed selection.
func (s *State) Vote(participant string) []string {
	return append([]string(nil), s.Votes[participant]...)
}

// SetVote replaces the participant's selection wholesale.
func (s *State) SetVote(participant string, selection []string) {
	s.Votes[participant] = append([]string(nil), selection...)
}

// VoterCount is the number of participants with a committed vote.
func (s *State) VoterCount() int {
	n := 0
	for _, v := range s.Votes {
		if len(v) > 0 {
			n++
		}
	}
	return n
}

// Voters returns participant keys in ascending order.
func (s *State) Voters() []string {
	keys := make([]string, 0, len(s.Votes))
	for k, v := range s.Votes {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Booking returns the label reserved at (room, slot).
func (s *State) Booking(room string, slot int) (string, bool) {
	label, ok := s.Bookings[room][slot]
	return label, ok
}

// Book reserves (room, slot). The first writer wins.
func (s *State) Book(room string, slot int, label string) error {
	if !s.Layout.InBounds(room, slot) {
		return ErrUnknownSelection
	}
	if _, taken := s.Booking(room, slot); taken {
		return ErrSlotConflict
	}
	if s.Bookings[room] == nil {
		s.Bookings[room] = make(map[int]string)
	}
	s.Bookings[room][slot] = label
	return nil
}

// RenameBooking overwrites the label of an existing booking.
func (s *State) RenameBooking(room string, slot int, label string) error {
	if _, ok := s.Booking(room, slot); !ok {
		return ErrUnknownSelection
	}
	s.Bookings[room][slot] = label
	return nil
}

// BookingCount counts all ledger entries, including stale ones.
func (s *State) BookingCount() int {
	n := 0
	for _, slots := range s.Bookings {
		n += len(slots)
	}
	return n
}

// BookedSlots returns the in-bounds booked slots of room in ascending order.
func (s *State) BookedSlots(room string) []int {
	var out []int
	for slot := range s.Bookings[room] {
		if s.Layout.InBounds(room, slot) {
			out = append(out, slot)
		}
	}
	sort.Ints(out)
	return out
}

// BookedRooms lists, in layout order, rooms with at least one in-bounds booking.
func (s *State) BookedRooms() []string {
	var out []string
	for _, room := range s.Layout.Rooms {
		if len(s.BookedSlots(room)) > 0 {
			out = append(out, room)
		}
	}
	return out
}
