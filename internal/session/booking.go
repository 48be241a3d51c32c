package session

import (
	"strconv"
	"strings"

	"topicvote/internal/model"
)

// BookingSession reserves a free slot, or relabels a booked one when created by NewRename.
type BookingSession struct {
	step   Step
	rename bool
	Room   string
	Slot   int
}

// NewBooking starts at room selection.
func NewBooking() *BookingSession {
	return &BookingSession{step: StepRoom}
}

// NewRename starts a relabel flow at room selection.
func NewRename() *BookingSession {
	return &BookingSession{step: StepRoom, rename: true}
}

func (b *BookingSession) Kind() Kind {
	if b.rename {
		return KindRename
	}
	return KindBooking
}

func (b *BookingSession) Step() Step { return b.step }

func (b *BookingSession) Expects() Input {
	if b.step == StepLabel {
		return InputText
	}
	return InputButton
}

// Rooms lists the rooms this flow may pick from.
func (b *BookingSession) Rooms(st *model.State) []string {
	if b.rename {
		return st.BookedRooms()
	}
	return append([]string(nil), st.Layout.Rooms...)
}

// PickRoom selects a room. Rename only accepts rooms with bookings.
func (b *BookingSession) PickRoom(st *model.State, room string) error {
	if st.Layout.RoomIndex(room) < 0 {
		return model.ErrUnknownSelection
	}
	if b.rename && len(st.BookedSlots(room)) == 0 {
		return model.ErrNoBookings
	}
	if err := flow.advance(&b.step, StepSlot); err != nil {
		return err
	}
	b.Room = room
	return nil
}

// PickSlot selects a slot of the chosen room. Booking an occupied slot ends the
// flow with model.ErrSlotConflict; the ledger is not touched.
func (b *BookingSession) PickSlot(st *model.State, slot int) error {
	if err := flow.check(b.step, StepLabel); err != nil {
		return err
	}
	if !st.Layout.InBounds(b.Room, slot) {
		return model.ErrUnknownSelection
	}
	_, taken := st.Booking(b.Room, slot)
	if b.rename {
		if !taken {
			return model.ErrUnknownSelection
		}
	} else if taken {
		b.step = StepCanceled
		return model.ErrSlotConflict
	}
	b.Slot = slot
	b.step = StepLabel
	return nil
}

// Commit writes the label. A slot taken since it was picked is a conflict and
// cancels the flow. On success the session stays at the label step so a failed
// save can be retried; its owner discards it once st is persisted.
func (b *BookingSession) Commit(st *model.State, label string) error {
	if err := flow.check(b.step, StepDone); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return model.ErrEmptyInput
	}
	var err error
	if b.rename {
		err = st.RenameBooking(b.Room, b.Slot, label)
	} else {
		err = st.Book(b.Room, b.Slot, label)
	}
	if err != nil {
		b.step = StepCanceled
		return err
	}
	return nil
}

// SettingSession waits for one layout value.
type SettingSession struct {
	step  Step
	Field string
}

// NewSetting waits for a value of field (one of the model.Field* names).
func NewSetting(field string) *SettingSession {
	return &SettingSession{step: StepValue, Field: field}
}

func (s *SettingSession) Kind() Kind     { return KindSetting }
func (s *SettingSession) Step() Step     { return s.step }
func (s *SettingSession) Expects() Input { return InputText }

// Apply parses input into the layout. A *model.ConfigurationError leaves both
// the layout and the session as they were.
func (s *SettingSession) Apply(st *model.State, input string) (string, error) {
	if err := flow.check(s.step, StepDone); err != nil {
		return "", err
	}
	return ApplySetting(st, s.Field, input)
}

// ApplySetting changes one layout field and returns the applied value as text.
func ApplySetting(st *model.State, field, input string) (string, error) {
	switch field {
	case model.FieldRooms:
		if _, err := st.SetRoomCount(input); err != nil {
			return "", err
		}
		return strings.Join(st.Layout.Rooms, ", "), nil
	case model.FieldSlots:
		n, err := st.SetSlotCount(input)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	case model.FieldMaxVotes:
		n, err := st.SetMaxVotes(input)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	case model.FieldRoomNames:
		names, err := st.SetRoomNames(input)
		if err != nil {
			return "", err
		}
		return strings.Join(names, ", "), nil
	}
	return "", &model.ConfigurationError{Field: field, Input: input}
}
