package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"topicvote/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBookingsShapes(t *testing.T) {
	var in map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"Зал 1": [1, "2", 3.5, "x"],
		"Зал 2": {"1": "Keynote", "2": null, "3": "  "},
		"Зал 3": null
	}`), &in))

	got, dropped := NormalizeBookings(in)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, map[string]map[int]string{
		"Зал 1": {1: model.ReservedLabel, 2: model.ReservedLabel},
		"Зал 2": {1: "Keynote", 2: model.ReservedLabel, 3: model.ReservedLabel},
	}, got)
}

func TestNormalizeBookingsIdempotent(t *testing.T) {
	inputs := []string{
		`{"A": [1, 2]}`,
		`{"A": {"1": "x", "4": null}, "B": ["3"]}`,
		`{}`,
	}
	for _, raw := range inputs {
		var in map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &in))

		once, _ := NormalizeBookings(in)

		asAny := make(map[string]any, len(once))
		for room, slots := range once {
			asAny[room] = slots
		}
		twice, dropped := NormalizeBookings(asAny)
		assert.Equal(t, 0, dropped)
		assert.Equal(t, once, twice, raw)

		// And through a serialize/load round.
		s := model.NewState(model.DefaultLayout())
		s.Bookings = once
		blob, err := Serialize(s)
		require.NoError(t, err)
		loaded, _, err := Load(blob, model.DefaultLayout())
		require.NoError(t, err)
		assert.Equal(t, once, loaded.Bookings, raw)
	}
}

func TestLoadLegacyBlob(t *testing.T) {
	blob := []byte(`{
		"topics": ["Go", "Go", "Rust", ""],
		"votes": {"42": ["Go", "Go", "Rust"], "7": []},
		"num_rooms": 2,
		"num_slots": 5,
		"bookings": {"Зал 1": [2]}
	}`)

	s, mig, err := Load(blob, model.DefaultLayout())
	require.NoError(t, err)
	assert.True(t, mig.Migrated())
	assert.Equal(t, []string{"Go", "Rust"}, s.Topics)
	assert.Equal(t, map[string][]string{"42": {"Go", "Rust"}}, s.Votes)
	assert.Equal(t, []string{"Зал 1", "Зал 2"}, s.Layout.Rooms)
	assert.Equal(t, 5, s.Layout.SlotsPerRoom)
	assert.Equal(t, model.DefaultMaxVotes, s.Layout.MaxVotes)
	assert.Equal(t, map[string]map[int]string{"Зал 1": {2: model.ReservedLabel}}, s.Bookings)
}

func TestLoadEmptyBlobUsesDefaults(t *testing.T) {
	defaults := model.NewLayout(2, 3, 1)
	s, mig, err := Load(nil, defaults)
	require.NoError(t, err)
	assert.False(t, mig.Migrated())
	assert.Equal(t, defaults, s.Layout)
	assert.Empty(t, s.Topics)
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, _, err := Load([]byte("{not json"), model.DefaultLayout())
	assert.Error(t, err)
}

func TestSerializeRoundTripKeepsRevision(t *testing.T) {
	s := model.NewState(model.Layout{Rooms: []string{"A", "B"}, SlotsPerRoom: 2, MaxVotes: 3})
	s.AddTopics("X", "Y")
	s.SetVote("1", []string{"Y", "X"})
	require.NoError(t, s.Book("B", 2, "Lunch"))

	blob, err := Serialize(s)
	require.NoError(t, err)
	loaded, mig, err := Load(blob, model.DefaultLayout())
	require.NoError(t, err)
	assert.False(t, mig.Migrated())
	assert.Equal(t, s, loaded)
}

func TestRepositorySaveFailure(t *testing.T) {
	ctx := context.Background()
	backend := &MemoryBackend{}
	repo := NewRepository(backend, model.DefaultLayout(), nil)

	s := model.NewState(model.DefaultLayout())
	s.AddTopics("A")
	require.NoError(t, repo.SaveState(ctx, s))

	backend.Err = errors.New("disk full")
	s.AddTopics("B")
	assert.Error(t, repo.SaveState(ctx, s))

	loaded, err := repo.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, loaded.Topics)
}
