package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"topicvote/internal/events"
	"topicvote/internal/model"
	"topicvote/internal/schedule"
	"topicvote/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authorizerMock struct {
	mock.Mock
}

func (m *authorizerMock) IsOrganizer(_ context.Context, id int64) bool {
	return m.Called(id).Bool(0)
}

type directoryStub map[int64]string

func (d directoryStub) DisplayName(_ context.Context, id int64) string {
	return d[id]
}

func testLayout() model.Layout {
	return model.Layout{Rooms: []string{"A", "B"}, SlotsPerRoom: 2, MaxVotes: 2}
}

func newEngine(t *testing.T, opts Options) (*Engine, *store.MemoryBackend) {
	t.Helper()
	st := model.NewState(testLayout())
	st.AddTopics("X", "Y", "Z")
	backend := &store.MemoryBackend{}
	repo := store.NewRepository(backend, testLayout(), nil)
	return New(st, repo, opts, nil), backend
}

func command(user int64, cmd, args string) Event {
	return Event{Kind: KindCommand, ParticipantID: user, ChatID: user, Private: true, Command: cmd, Args: args}
}

func text(user int64, s string) Event {
	return Event{Kind: KindText, ParticipantID: user, ChatID: user, Private: true, Text: s}
}

func button(user int64, a Action) Event {
	return Event{Kind: KindButton, ParticipantID: user, ChatID: user, Private: true, MessageID: 10, Action: a}
}

func handle(t *testing.T, e *Engine, ev Event) []RenderRequest {
	t.Helper()
	out, err := e.Handle(context.Background(), ev)
	require.NoError(t, err)
	return out
}

func toggle(e *Engine, index int) Action {
	return Action{Kind: ActToggleTopic, Index: index, Rev: e.Snapshot().CatalogRevision}
}

func TestVoteFlow(t *testing.T) {
	e, backend := newEngine(t, Options{BotUsername: "topicbot"})

	out := handle(t, e, command(1, "vote", ""))
	require.Len(t, out, 1)
	assert.Len(t, out[0].Items, 3)
	assert.Equal(t, int64(1), out[0].ChatID)

	out = handle(t, e, button(1, toggle(e, 0)))
	require.Len(t, out, 1)
	assert.Equal(t, 10, out[0].EditMessageID)
	assert.True(t, out[0].Items[0].Checked)
	assert.False(t, out[0].Items[1].Checked)

	handle(t, e, button(1, toggle(e, 1)))

	out = handle(t, e, button(1, toggle(e, 2)))
	require.Len(t, out, 1)
	assert.True(t, out[0].Alert)
	assert.Equal(t, msgVoteLimit, out[0].Text)

	out = handle(t, e, button(1, Action{Kind: ActSubmitVotes}))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, msgVoteThanks)
	require.Len(t, out[0].Buttons, 2)
	assert.Equal(t, ActChangeVote, out[0].Buttons[0].Action.Kind)
	assert.Equal(t, "https://t.me/topicbot", out[0].Buttons[1].URL)

	assert.Equal(t, []string{"X", "Y"}, e.Snapshot().Vote("1"))
	assert.Zero(t, e.OpenSessions())

	reloaded, err := store.NewRepository(backend, testLayout(), nil).LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, reloaded.Vote("1"))
}

func TestChangeVoteReplacesSelection(t *testing.T) {
	e, _ := newEngine(t, Options{})

	handle(t, e, command(1, "vote", ""))
	handle(t, e, button(1, toggle(e, 0)))
	handle(t, e, button(1, Action{Kind: ActSubmitVotes}))

	out := handle(t, e, button(1, Action{Kind: ActChangeVote}))
	require.Len(t, out, 1)
	assert.True(t, out[0].Items[0].Checked, "keyboard is seeded from the committed vote")

	handle(t, e, button(1, toggle(e, 0)))
	handle(t, e, button(1, toggle(e, 2)))
	handle(t, e, button(1, Action{Kind: ActSubmitVotes}))

	assert.Equal(t, []string{"Z"}, e.Snapshot().Vote("1"))
}

func TestEmptySubmitKeepsSession(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "vote", ""))

	out := handle(t, e, button(1, Action{Kind: ActSubmitVotes}))
	require.Len(t, out, 1)
	assert.True(t, out[0].Alert)
	assert.Equal(t, msgEmptySelection, out[0].Text)
	assert.Equal(t, 1, e.OpenSessions())
	assert.Zero(t, e.Snapshot().VoterCount())
}

func TestStaleTopicButton(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "vote", ""))
	stale := toggle(e, 0)

	handle(t, e, command(9, "addtopic", ""))
	handle(t, e, text(9, "W"))
	handle(t, e, button(9, Action{Kind: ActSubmitTopics}))

	out := handle(t, e, button(1, stale))
	require.Len(t, out, 1)
	assert.True(t, out[0].Alert)
	assert.Equal(t, msgUnknownSelection, out[0].Text)
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	e, backend := newEngine(t, Options{})
	handle(t, e, command(1, "vote", ""))
	handle(t, e, button(1, toggle(e, 0)))

	backend.Err = errors.New("disk full")
	out, err := e.Handle(context.Background(), button(1, Action{Kind: ActSubmitVotes}))
	require.ErrorIs(t, err, ErrPersist)
	require.NotEmpty(t, out)
	assert.Equal(t, msgPersistFailed, out[len(out)-1].Text)
	assert.Zero(t, e.Snapshot().VoterCount())
}

func TestBookingRetriesAfterPersistFailure(t *testing.T) {
	e, backend := newEngine(t, Options{})
	handle(t, e, command(1, "book", ""))
	handle(t, e, button(1, Action{Kind: ActPickRoom, Index: 0}))
	handle(t, e, button(1, Action{Kind: ActPickSlot, Index: 1}))

	backend.Err = errors.New("disk full")
	out, err := e.Handle(context.Background(), text(1, "Keynote"))
	require.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, msgPersistFailed, out[len(out)-1].Text)
	_, booked := e.Snapshot().Booking("A", 1)
	assert.False(t, booked)
	assert.Equal(t, 1, e.OpenSessions())

	backend.Err = nil
	out = handle(t, e, text(1, "Keynote"))
	require.Len(t, out, 1)
	assert.Equal(t, "Забронировано: A, слот 1 - Keynote", out[0].Text)
	label, booked := e.Snapshot().Booking("A", 1)
	assert.True(t, booked)
	assert.Equal(t, "Keynote", label)
	assert.Zero(t, e.OpenSessions())
}

func TestVoteSubmitAfterLimitLowered(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "vote", ""))
	handle(t, e, button(1, toggle(e, 0)))
	handle(t, e, button(1, toggle(e, 1)))

	handle(t, e, command(2, "setmaxvotes", "1"))

	out := handle(t, e, button(1, Action{Kind: ActSubmitVotes}))
	require.Len(t, out, 2)
	assert.True(t, out[0].Alert)
	assert.Equal(t, "Лимит изменился: выберите не больше 1 тем.", out[0].Text)
	assert.Equal(t, 10, out[1].EditMessageID)
	assert.Zero(t, e.Snapshot().VoterCount())

	handle(t, e, button(1, toggle(e, 0)))
	handle(t, e, button(1, Action{Kind: ActSubmitVotes}))
	assert.Equal(t, []string{"Y"}, e.Snapshot().Vote("1"))
}

func TestCancel(t *testing.T) {
	e, _ := newEngine(t, Options{})

	out := handle(t, e, command(1, "cancel", ""))
	require.Len(t, out, 1)
	assert.Equal(t, msgNothingToCancel, out[0].Text)

	handle(t, e, command(1, "addtopic", ""))
	handle(t, e, text(1, "Q; R"))
	before := e.Snapshot()

	out = handle(t, e, button(1, Action{Kind: ActCancel}))
	require.Len(t, out, 1)
	assert.Equal(t, msgCanceled, out[0].Text)
	assert.Equal(t, before, e.Snapshot())
	assert.Zero(t, e.OpenSessions())
}

func TestTextWithoutSession(t *testing.T) {
	e, _ := newEngine(t, Options{})

	out := handle(t, e, text(1, "hello"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoActiveFlow, out[0].Text)

	group := text(1, "hello")
	group.ChatID = -100
	group.Private = false
	assert.Empty(t, handle(t, e, group))
}

func TestSubmissionFlow(t *testing.T) {
	bus := events.NewEventBus()
	var published []string
	bus.SubscribeAll(func(ev events.Event) error {
		published = append(published, ev.Type)
		return nil
	})
	e, _ := newEngine(t, Options{Categories: []string{"Talk", "Panel"}, Publisher: bus})

	out := handle(t, e, command(1, "suggest", ""))
	assert.Equal(t, msgAskName, out[0].Text)

	out = handle(t, e, text(1, "Anna"))
	require.Len(t, out, 1)
	require.Len(t, out[0].Buttons, 3)

	out = handle(t, e, text(1, "not a button"))
	require.Len(t, out, 2)
	assert.Equal(t, msgUseButtons, out[0].Text)

	handle(t, e, button(1, Action{Kind: ActPickCategory, Index: 1}))
	out = handle(t, e, text(1, "Go in production"))
	require.Len(t, out, 1)

	topic := "Anna: Panel. Go in production"
	assert.Contains(t, out[0].Text, topic)
	assert.True(t, e.Snapshot().HasTopic(topic))
	assert.Equal(t, []string{events.TypeTopicsAdded}, published)
}

func TestBatchAdd(t *testing.T) {
	e, _ := newEngine(t, Options{})

	handle(t, e, command(1, "addtopic", ""))
	out := handle(t, e, button(1, Action{Kind: ActSubmitTopics}))
	require.Len(t, out, 1)
	assert.True(t, out[0].Alert)

	handle(t, e, text(1, " Q ;; X; R"))
	handle(t, e, text(1, "R; S"))
	out = handle(t, e, button(1, Action{Kind: ActSubmitTopics}))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Q, R, S")

	assert.Equal(t, []string{"X", "Y", "Z", "Q", "R", "S"}, e.Snapshot().Topics)
}

func TestRemoveTopics(t *testing.T) {
	e, _ := newEngine(t, Options{})

	handle(t, e, command(1, "removetopic", ""))
	rev := e.Snapshot().CatalogRevision
	handle(t, e, button(1, Action{Kind: ActToggleRemoval, Index: 1, Rev: rev}))
	handle(t, e, button(1, Action{Kind: ActToggleRemoval, Index: 2, Rev: rev}))
	handle(t, e, button(1, Action{Kind: ActToggleRemoval, Index: 2, Rev: rev}))
	out := handle(t, e, button(1, Action{Kind: ActSubmitRemoval}))
	require.Len(t, out, 1)

	assert.Equal(t, []string{"X", "Z"}, e.Snapshot().Topics)
}

func TestBookAndRename(t *testing.T) {
	e, _ := newEngine(t, Options{})

	out := handle(t, e, command(1, "rename", ""))
	assert.Equal(t, msgNoBookings, out[0].Text)

	handle(t, e, command(1, "book", ""))
	out = handle(t, e, button(1, Action{Kind: ActPickRoom, Index: 1}))
	require.Len(t, out, 1)
	assert.Len(t, out[0].Buttons, 3, "two slots and cancel")

	out = handle(t, e, button(1, Action{Kind: ActPickSlot, Index: 2}))
	assert.Contains(t, out[0].Text, msgAskLabel)
	handle(t, e, text(1, "Keynote"))

	label, ok := e.Snapshot().Booking("B", 2)
	require.True(t, ok)
	assert.Equal(t, "Keynote", label)

	handle(t, e, command(1, "rename", ""))
	handle(t, e, button(1, Action{Kind: ActPickRoom, Index: 0}))
	handle(t, e, button(1, Action{Kind: ActPickSlot, Index: 2}))
	handle(t, e, text(1, "Opening"))

	label, _ = e.Snapshot().Booking("B", 2)
	assert.Equal(t, "Opening", label)
}

func TestBookingConflict(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "book", ""))
	handle(t, e, button(1, Action{Kind: ActPickRoom, Index: 0}))
	handle(t, e, button(1, Action{Kind: ActPickSlot, Index: 1}))

	handle(t, e, command(2, "book", ""))
	handle(t, e, button(2, Action{Kind: ActPickRoom, Index: 0}))
	handle(t, e, button(2, Action{Kind: ActPickSlot, Index: 1}))
	handle(t, e, text(2, "Lunch"))

	out := handle(t, e, text(1, "Keynote"))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Lunch")
	assert.Zero(t, e.OpenSessions())

	label, _ := e.Snapshot().Booking("A", 1)
	assert.Equal(t, "Lunch", label)

	handle(t, e, command(3, "book", ""))
	handle(t, e, button(3, Action{Kind: ActPickRoom, Index: 0}))
	out = handle(t, e, button(3, Action{Kind: ActPickSlot, Index: 1}))
	assert.Contains(t, out[0].Text, "уже занят")
	assert.Zero(t, e.OpenSessions())
}

func TestSettings(t *testing.T) {
	e, _ := newEngine(t, Options{})

	out := handle(t, e, command(1, "setslots", "abc"))
	assert.Equal(t, settingInvalid(model.FieldSlots), out[0].Text)
	assert.Equal(t, 2, e.Snapshot().Layout.SlotsPerRoom)

	handle(t, e, command(1, "setslots", "3"))
	assert.Equal(t, 3, e.Snapshot().Layout.SlotsPerRoom)

	out = handle(t, e, command(1, "setmaxvotes", ""))
	assert.Equal(t, settingPrompt(model.FieldMaxVotes), out[0].Text)

	out = handle(t, e, text(1, "0"))
	require.Len(t, out, 2)
	assert.Equal(t, 1, e.OpenSessions())

	handle(t, e, text(1, "5"))
	assert.Equal(t, 5, e.Snapshot().Layout.MaxVotes)
	assert.Zero(t, e.OpenSessions())

	handle(t, e, command(1, "setroomnames", "Main; Side"))
	assert.Equal(t, []string{"Main", "Side"}, e.Snapshot().Layout.Rooms)
}

func TestOrganizerGate(t *testing.T) {
	auth := &authorizerMock{}
	auth.On("IsOrganizer", int64(1)).Return(false)
	auth.On("IsOrganizer", int64(2)).Return(true)
	e, _ := newEngine(t, Options{Authorizer: auth})

	out := handle(t, e, command(1, "clearvotes", ""))
	assert.Equal(t, msgAccessDenied, out[0].Text)

	out = handle(t, e, command(2, "countvotes", ""))
	assert.Equal(t, msgNoVoters, out[0].Text)

	out = handle(t, e, command(1, "vote", ""))
	assert.Len(t, out[0].Items, 3)

	auth.AssertExpectations(t)
}

func TestClearTopicsClearsVotes(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "vote", ""))
	handle(t, e, button(1, toggle(e, 0)))
	handle(t, e, button(1, Action{Kind: ActSubmitVotes}))

	handle(t, e, command(9, "cleartopics", ""))
	snap := e.Snapshot()
	assert.Empty(t, snap.Topics)
	assert.Zero(t, snap.VoterCount())

	out := handle(t, e, command(1, "vote", ""))
	assert.Equal(t, msgNoTopics, out[0].Text)
}

func TestFinalize(t *testing.T) {
	e, _ := newEngine(t, Options{})

	out := handle(t, e, command(9, "finalize", ""))
	assert.Equal(t, msgNoVotesToProcess, out[0].Text)

	vote := func(user int64, idx ...int) {
		handle(t, e, command(user, "vote", ""))
		for _, i := range idx {
			handle(t, e, button(user, toggle(e, i)))
		}
		handle(t, e, button(user, Action{Kind: ActSubmitVotes}))
	}
	vote(1, 0, 1)
	vote(2, 0)
	vote(3, 1, 2)

	out = handle(t, e, command(9, "finalize", ""))
	require.Len(t, out, 1)
	assert.True(t, out[0].HTML)
	report := out[0].Text
	assert.Contains(t, report, "• X - 2 голоса")
	assert.Contains(t, report, "• Z - 1 голос")
	assert.Contains(t, report, "A\n<b>Слот 1:</b> X\n<b>Слот 2:</b> Y\n")
	assert.Contains(t, report, "B\n<b>Слот 1:</b> Z\n<b>Слот 2:</b> Пусто\n")
	assert.NotContains(t, report, msgSurplusHeader)
}

func TestFinalizeEscapesHTML(t *testing.T) {
	e, _ := newEngine(t, Options{})
	handle(t, e, command(1, "book", ""))
	handle(t, e, button(1, Action{Kind: ActPickRoom, Index: 0}))
	handle(t, e, button(1, Action{Kind: ActPickSlot, Index: 1}))
	handle(t, e, text(1, "Q&A <live>"))

	out := handle(t, e, command(1, "finalize", ""))
	assert.Contains(t, out[0].Text, "Q&amp;A &lt;live&gt;")
	assert.Contains(t, out[0].Text, msgNoVotesYet)
}

func TestSecretUsesDirectory(t *testing.T) {
	e, _ := newEngine(t, Options{Directory: directoryStub{1: "Anna <A>"}})
	for _, user := range []int64{1, 2} {
		handle(t, e, command(user, "vote", ""))
		handle(t, e, button(user, toggle(e, 0)))
		handle(t, e, button(user, Action{Kind: ActSubmitVotes}))
	}

	out := handle(t, e, command(9, "secret", ""))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "<b>Anna &lt;A&gt;</b>: X")
	assert.Contains(t, out[0].Text, "<b>Пользователь 2</b>: X")
}

func TestExport(t *testing.T) {
	var got schedule.Report
	e, _ := newEngine(t, Options{Exporter: func(r schedule.Report, _ model.Layout) (*Attachment, error) {
		got = r
		return &Attachment{Name: "results.xlsx", Data: []byte("xlsx")}, nil
	}})
	handle(t, e, command(1, "vote", ""))
	handle(t, e, button(1, toggle(e, 1)))
	handle(t, e, button(1, Action{Kind: ActSubmitVotes}))

	out := handle(t, e, command(1, "export", ""))
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Attachment)
	assert.Equal(t, "results.xlsx", out[0].Attachment.Name)
	require.Len(t, got.Tally, 1)
	assert.Equal(t, "Y", got.Tally[0].Topic)
}

func TestStartDeepLink(t *testing.T) {
	e, _ := newEngine(t, Options{BotUsername: "topicbot"})

	group := command(1, "start", "")
	group.ChatID = -100
	group.Private = false
	out := handle(t, e, group)
	require.Len(t, out, 1)
	assert.True(t, out[0].AllowURLButtons)
	assert.Equal(t, "https://t.me/topicbot?start=vote", out[0].Buttons[0].URL)

	out = handle(t, e, command(1, "start", "vote"))
	assert.Len(t, out[0].Items, 3)
}

func TestGroupVoteGoesToPrivateChat(t *testing.T) {
	e, _ := newEngine(t, Options{})
	ev := command(5, "vote", "")
	ev.ChatID = -100
	ev.Private = false

	out := handle(t, e, ev)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].ChatID)

	chatter := text(5, "hi all")
	chatter.ChatID = -100
	chatter.Private = false
	assert.Empty(t, handle(t, e, chatter))
}

func TestLayoutReport(t *testing.T) {
	e, _ := newEngine(t, Options{})
	out := handle(t, e, command(1, "layout", ""))
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0].Text, "Залов: 2, слотов в зале: 2, голосов на участника: 2"))
}
