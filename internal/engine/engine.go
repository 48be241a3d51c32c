// Package engine routes classified participant events to the interaction
// flows, applies their mutations to the shared state and describes what
// should be shown in return. It knows nothing about the chat transport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"topicvote/internal/model"
	"topicvote/internal/schedule"
	"topicvote/internal/session"

	"github.com/rs/zerolog"
)

// EventKind is the coarse shape of an inbound event.
type EventKind int

const (
	KindCommand EventKind = iota
	KindText
	KindButton
)

// Event is an inbound update already classified by the transport.
type Event struct {
	Kind          EventKind
	ParticipantID int64
	ChatID        int64
	// MessageID is the message a button belongs to.
	MessageID int
	Private   bool
	Command   string
	Args      string
	Text      string
	Action    Action
}

// Item is a selectable row with a checked state.
type Item struct {
	Label   string
	Checked bool
	Action  Action
}

// Button is an action button; URL buttons carry no action.
type Button struct {
	Label  string
	Action Action
	URL    string
}

// Attachment is a file to send along with the text.
type Attachment struct {
	Name string
	Data []byte
}

// RenderRequest describes one piece of output.
type RenderRequest struct {
	ChatID int64
	Text   string
	HTML   bool
	Items  []Item
	// Buttons are laid out one per row after the items.
	Buttons []Button
	// EditMessageID, when non-zero, asks to replace that message instead of sending a new one.
	EditMessageID int
	// Alert is shown as a popup answer to the pressed button.
	Alert           bool
	AllowURLButtons bool
	Attachment      *Attachment
}

// ErrPersist wraps a failure of the persistence collaborator. The mutation
// that triggered it was not applied.
var ErrPersist = errors.New("state not persisted")

// Persister writes the whole state.
type Persister interface {
	SaveState(ctx context.Context, s *model.State) error
}

// Authorizer decides who may run organizer commands.
type Authorizer interface {
	IsOrganizer(ctx context.Context, participantID int64) bool
}

// Directory resolves participant display names for reports.
type Directory interface {
	DisplayName(ctx context.Context, participantID int64) string
}

// Exporter renders a finalized report as a file.
type Exporter func(report schedule.Report, layout model.Layout) (*Attachment, error)

// Publisher receives domain events after successful mutations.
type Publisher interface {
	PublishJSON(evType string, participantID int64, payload any) error
}

// Options carries the optional collaborators.
type Options struct {
	BotUsername string
	Categories  []string
	Authorizer  Authorizer
	Directory   Directory
	Exporter    Exporter
	Publisher   Publisher
}

// Engine owns the shared state and the sessions. Handle serializes all
// events, so a mutation and its persistence finish before the next event starts.
type Engine struct {
	mu       sync.Mutex
	state    *model.State
	repo     Persister
	sessions *session.Store
	opts     Options
	logger   *zerolog.Logger
}

// New creates an engine over an already loaded state.
func New(state *model.State, repo Persister, opts Options, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if len(opts.Categories) == 0 {
		opts.Categories = DefaultCategories
	}
	return &Engine{
		state:    state,
		repo:     repo,
		sessions: session.NewStore(),
		opts:     opts,
		logger:   logger,
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() *model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// OpenSessions is the number of flows in progress.
func (e *Engine) OpenSessions() int {
	return e.sessions.Len()
}

// Handle processes one event. The returned error is non-nil only when the
// state could not be persisted; the render requests are still meaningful and
// the session stays open so the participant can retry.
func (e *Engine) Handle(ctx context.Context, ev Event) ([]RenderRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		out []RenderRequest
		err error
	)
	switch ev.Kind {
	case KindCommand:
		out, err = e.handleCommand(ctx, ev)
	case KindText:
		out, err = e.handleText(ctx, ev)
	case KindButton:
		out, err = e.handleButton(ctx, ev)
	}
	if errors.Is(err, session.ErrInvalidTransition) {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", ev.ParticipantID).Msg("out of step input")
		if ev.Kind == KindButton {
			return []RenderRequest{e.alert(ev, msgStale)}, nil
		}
		return []RenderRequest{e.reply(ev, msgStale)}, nil
	}
	if errors.Is(err, ErrPersist) {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", ev.ParticipantID).Msg("persist failed")
		out = append(out, e.reply(ev, msgPersistFailed))
	}
	return out, err
}

// mutate applies fn to a copy of the state and swaps it in once saved.
// Domain errors from fn are returned unchanged and leave the state untouched.
func (e *Engine) mutate(ctx context.Context, fn func(st *model.State) error) error {
	next := e.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := e.repo.SaveState(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	e.state = next
	return nil
}

func (e *Engine) publish(ctx context.Context, evType string, participant int64, payload any) {
	if e.opts.Publisher == nil {
		return
	}
	if err := e.opts.Publisher.PublishJSON(evType, participant, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", evType).Msg("event handler failed")
	}
}

func (e *Engine) isOrganizer(ctx context.Context, participant int64) bool {
	if e.opts.Authorizer == nil {
		return true
	}
	return e.opts.Authorizer.IsOrganizer(ctx, participant)
}

func (e *Engine) reply(ev Event, text string) RenderRequest {
	return RenderRequest{ChatID: ev.ChatID, Text: text}
}

func (e *Engine) alert(ev Event, text string) RenderRequest {
	return RenderRequest{ChatID: ev.ChatID, Text: text, Alert: true}
}

// cancel discards the participant's session without touching durable state.
func (e *Engine) cancel(ev Event) []RenderRequest {
	if !e.sessions.Reset(ev.ParticipantID) {
		return []RenderRequest{e.reply(ev, msgNothingToCancel)}
	}
	r := e.reply(ev, msgCanceled)
	r.EditMessageID = ev.MessageID
	return []RenderRequest{r}
}

func (e *Engine) handleText(ctx context.Context, ev Event) ([]RenderRequest, error) {
	sess := e.sessions.Get(ev.ParticipantID)
	if sess == nil {
		if ev.Private {
			return []RenderRequest{e.reply(ev, msgNoActiveFlow)}, nil
		}
		return nil, nil
	}
	if sess.Expects() == session.InputButton {
		if !ev.Private {
			return nil, nil
		}
		return []RenderRequest{e.reply(ev, msgUseButtons), e.prompt(ev, sess)}, nil
	}

	switch s := sess.(type) {
	case *session.SubmissionSession:
		return e.submissionText(ctx, ev, s)
	case *session.BatchSession:
		return e.batchText(ev, s), nil
	case *session.BookingSession:
		return e.bookingLabel(ctx, ev, s)
	case *session.SettingSession:
		return e.settingText(ctx, ev, s)
	}
	return nil, nil
}

func (e *Engine) handleButton(ctx context.Context, ev Event) ([]RenderRequest, error) {
	switch ev.Action.Kind {
	case ActNoop:
		return nil, nil
	case ActCancel:
		return e.cancel(ev), nil
	case ActChangeVote:
		return e.startVote(ev), nil
	}

	sess := e.sessions.Get(ev.ParticipantID)
	if sess == nil && ev.Action.Kind == ActToggleTopic {
		// The selection keyboard outlives restarts; reseed from the committed vote.
		sess = session.StartSelection(e.state, model.ParticipantKey(ev.ParticipantID))
		e.sessions.Start(ev.ParticipantID, sess)
	}
	if sess == nil {
		return []RenderRequest{e.alert(ev, msgStale)}, nil
	}
	if sess.Expects() == session.InputText {
		return []RenderRequest{e.alert(ev, msgUseText), e.prompt(ev, sess)}, nil
	}

	switch s := sess.(type) {
	case *session.VoteSession:
		return e.voteButton(ctx, ev, s)
	case *session.SubmissionSession:
		return e.submissionButton(ev, s)
	case *session.BatchSession:
		return e.batchButton(ctx, ev, s)
	case *session.RemovalSession:
		return e.removalButton(ctx, ev, s)
	case *session.BookingSession:
		return e.bookingButton(ev, s)
	}
	return []RenderRequest{e.alert(ev, msgStale)}, nil
}

// prompt re-renders the current step of sess.
func (e *Engine) prompt(ev Event, sess session.Session) RenderRequest {
	switch s := sess.(type) {
	case *session.VoteSession:
		return e.voteKeyboard(ev, s)
	case *session.SubmissionSession:
		switch s.Step() {
		case session.StepName:
			return e.reply(ev, msgAskName)
		case session.StepCategory:
			return e.categoryKeyboard(ev)
		default:
			return e.reply(ev, msgAskBody)
		}
	case *session.BatchSession:
		return e.batchPrompt(ev)
	case *session.RemovalSession:
		return e.removalKeyboard(ev, s)
	case *session.BookingSession:
		switch s.Step() {
		case session.StepRoom:
			return e.roomKeyboard(ev, s)
		case session.StepSlot:
			return e.slotKeyboard(ev, s)
		default:
			return e.reply(ev, msgAskLabel)
		}
	case *session.SettingSession:
		return e.reply(ev, settingPrompt(s.Field))
	}
	return e.reply(ev, msgNoActiveFlow)
}
