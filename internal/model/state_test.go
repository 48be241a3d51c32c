package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTopicsKeepsOrderAndSkipsDuplicates(t *testing.T) {
	s := NewState(DefaultLayout())

	added := s.AddTopics("Go", " Rust ", "", "Go", "Zig")
	assert.Equal(t, []string{"Go", "Rust", "Zig"}, added)
	assert.Equal(t, []string{"Go", "Rust", "Zig"}, s.Topics)
	assert.Equal(t, 1, s.CatalogRevision)

	assert.Empty(t, s.AddTopics("Go"))
	assert.Equal(t, 1, s.CatalogRevision, "no-op add must not bump the revision")
}

func TestRemoveTopicsLeavesVotes(t *testing.T) {
	s := NewState(DefaultLayout())
	s.AddTopics("A", "B", "C")
	s.SetVote("1", []string{"A", "B"})

	n := s.RemoveTopics(map[string]struct{}{"B": {}, "missing": {}})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "C"}, s.Topics)
	assert.Equal(t, []string{"A", "B"}, s.Votes["1"])
	assert.Equal(t, 2, s.CatalogRevision)
}

func TestClearTopicsAlsoClearsVotes(t *testing.T) {
	s := NewState(DefaultLayout())
	s.AddTopics("A")
	s.SetVote("1", []string{"A"})

	s.ClearTopics()
	assert.Empty(t, s.Topics)
	assert.Empty(t, s.Votes)
}

func TestTopicAtChecksRevision(t *testing.T) {
	s := NewState(DefaultLayout())
	s.AddTopics("A", "B")
	rev := s.CatalogRevision

	topic, err := s.TopicAt(1, rev)
	require.NoError(t, err)
	assert.Equal(t, "B", topic)

	_, err = s.TopicAt(2, rev)
	assert.ErrorIs(t, err, ErrUnknownSelection)

	s.AddTopics("C")
	_, err = s.TopicAt(1, rev)
	assert.ErrorIs(t, err, ErrUnknownSelection)
}

func TestBookFirstWriterWins(t *testing.T) {
	s := NewState(NewLayout(2, 2, 2))

	require.NoError(t, s.Book("Зал 1", 1, "Keynote"))
	err := s.Book("Зал 1", 1, "Other")
	assert.ErrorIs(t, err, ErrSlotConflict)
	label, _ := s.Booking("Зал 1", 1)
	assert.Equal(t, "Keynote", label)

	assert.ErrorIs(t, s.Book("Зал 1", 3, "Out"), ErrUnknownSelection)
	assert.ErrorIs(t, s.Book("Зал 9", 1, "Out"), ErrUnknownSelection)
}

func TestRenameBookingPreservesKey(t *testing.T) {
	s := NewState(NewLayout(2, 2, 2))
	require.NoError(t, s.Book("Зал 2", 2, "Old"))

	require.NoError(t, s.RenameBooking("Зал 2", 2, "New"))
	label, ok := s.Booking("Зал 2", 2)
	assert.True(t, ok)
	assert.Equal(t, "New", label)
	assert.Equal(t, 1, s.BookingCount())

	assert.ErrorIs(t, s.RenameBooking("Зал 1", 1, "x"), ErrUnknownSelection)
}

func TestBookedRoomsIgnoresStaleEntries(t *testing.T) {
	s := NewState(NewLayout(2, 2, 2))
	s.Bookings["Зал 1"] = map[int]string{5: "stale"}
	s.Bookings["Gone"] = map[int]string{1: "stale"}
	s.Bookings["Зал 2"] = map[int]string{2: "B", 1: "A"}

	assert.Equal(t, []string{"Зал 2"}, s.BookedRooms())
	assert.Equal(t, []int{1, 2}, s.BookedSlots("Зал 2"))
	assert.Equal(t, 4, s.BookingCount())
}

func TestCloneIsDeep(t *testing.T) {
	s := NewState(NewLayout(1, 1, 1))
	s.AddTopics("A")
	s.SetVote("1", []string{"A"})
	require.NoError(t, s.Book("Зал 1", 1, "K"))

	c := s.Clone()
	c.Topics[0] = "changed"
	c.Votes["1"][0] = "changed"
	c.Bookings["Зал 1"][1] = "changed"
	c.Layout.Rooms[0] = "changed"

	assert.Equal(t, "A", s.Topics[0])
	assert.Equal(t, "A", s.Votes["1"][0])
	assert.Equal(t, "K", s.Bookings["Зал 1"][1])
	assert.Equal(t, "Зал 1", s.Layout.Rooms[0])
}

func TestLayoutSettings(t *testing.T) {
	s := NewState(NewLayout(2, 2, 2))
	require.NoError(t, s.Book("Зал 2", 1, "Keep"))

	n, err := s.SetRoomCount("1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Зал 1"}, s.Layout.Rooms)
	assert.Equal(t, 1, s.BookingCount(), "shrinking keeps stale bookings")

	_, err = s.SetRoomCount("3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Зал 1", "Зал 2", "Зал 3"}, s.Layout.Rooms)

	_, err = s.SetSlotCount("abc")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, FieldSlots, cfgErr.Field)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 2, s.Layout.SlotsPerRoom)

	_, err = s.SetMaxVotes("0")
	assert.ErrorIs(t, err, ErrConfiguration)

	names, err := s.SetRoomNames("Red; Blue ;")
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue"}, names)

	_, err = s.SetRoomNames("A; A")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, []string{"Red", "Blue"}, s.Layout.Rooms)
}
