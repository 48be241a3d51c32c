package schedule

import (
	"topicvote/internal/model"
)

// CellKind tells what occupies a schedule cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellBooking
	CellTopic
)

// Cell is one (room, slot) of the schedule.
type Cell struct {
	Slot  int
	Kind  CellKind
	Label string
	// Votes is the tally count of Label, zero for bookings that match no ranked topic.
	Votes int
}

// RoomSchedule is the ordered slot list of one room.
type RoomSchedule struct {
	Room  string
	Cells []Cell
}

// Allocation is the computed timetable plus the ranked topics that did not fit.
type Allocation struct {
	Rooms       []RoomSchedule
	Unscheduled []TopicCount
}

// Cell returns the cell at (room, slot).
func (a Allocation) Cell(room string, slot int) (Cell, bool) {
	for _, r := range a.Rooms {
		if r.Room != room {
			continue
		}
		if slot < 1 || slot > len(r.Cells) {
			return Cell{}, false
		}
		return r.Cells[slot-1], true
	}
	return Cell{}, false
}

// Allocate fills the grid room by room, slot 1..N inside each room.
//
// A booked cell always shows its label. A booking whose label equals a ranked
// topic counts as placing that topic, so the topic is never allocated again.
// Every other cell takes the next unplaced topic of the tally, or stays empty.
// Bookings outside the layout are skipped but not removed from the ledger.
func Allocate(tally []TopicCount, bookings map[string]map[int]string, layout model.Layout) Allocation {
	votes := make(map[string]int, len(tally))
	for _, tc := range tally {
		votes[tc.Topic] = tc.Count
	}

	placed := make(map[string]bool, len(tally))
	for _, room := range layout.Rooms {
		for slot, label := range bookings[room] {
			if !layout.InBounds(room, slot) {
				continue
			}
			if _, ranked := votes[label]; ranked {
				placed[label] = true
			}
		}
	}

	cursor := 0
	next := func() (TopicCount, bool) {
		for cursor < len(tally) {
			tc := tally[cursor]
			cursor++
			if !placed[tc.Topic] {
				return tc, true
			}
		}
		return TopicCount{}, false
	}

	out := Allocation{Rooms: make([]RoomSchedule, 0, len(layout.Rooms))}
	for _, room := range layout.Rooms {
		rs := RoomSchedule{Room: room, Cells: make([]Cell, 0, layout.SlotsPerRoom)}
		for slot := 1; slot <= layout.SlotsPerRoom; slot++ {
			if label, ok := bookings[room][slot]; ok {
				rs.Cells = append(rs.Cells, Cell{Slot: slot, Kind: CellBooking, Label: label, Votes: votes[label]})
				continue
			}
			if tc, ok := next(); ok {
				placed[tc.Topic] = true
				rs.Cells = append(rs.Cells, Cell{Slot: slot, Kind: CellTopic, Label: tc.Topic, Votes: tc.Count})
				continue
			}
			rs.Cells = append(rs.Cells, Cell{Slot: slot, Kind: CellEmpty, Label: model.EmptyLabel})
		}
		out.Rooms = append(out.Rooms, rs)
	}

	for _, tc := range tally {
		if !placed[tc.Topic] {
			out.Unscheduled = append(out.Unscheduled, tc)
		}
	}
	return out
}

// Report is the result of finalizing the vote.
type Report struct {
	Tally      []TopicCount
	Allocation Allocation
}

// Finalize tallies the store and allocates the schedule.
// It returns model.ErrNothingToProcess when there are neither votes nor bookings.
func Finalize(s *model.State) (Report, error) {
	if s.VoterCount() == 0 && s.BookingCount() == 0 {
		return Report{}, model.ErrNothingToProcess
	}
	tally := TallyState(s)
	return Report{
		Tally:      tally,
		Allocation: Allocate(tally, s.Bookings, s.Layout),
	}, nil
}
