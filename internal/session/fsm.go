// Package session implements the per-participant multi-step flows: voting,
// guided topic submission, batch topic add and removal, booking and renaming
// slots, and one-step layout settings.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies a flow.
type Kind string

const (
	KindVote       Kind = "vote"
	KindSubmission Kind = "submission"
	KindBatch      Kind = "batch"
	KindRemoval    Kind = "removal"
	KindBooking    Kind = "booking"
	KindRename     Kind = "rename"
	KindSetting    Kind = "setting"
)

// Step is the state of a session inside its flow.
type Step string

const (
	StepSelect   Step = "select"
	StepName     Step = "name"
	StepCategory Step = "category"
	StepBody     Step = "body"
	StepCollect  Step = "collect"
	StepRoom     Step = "room"
	StepSlot     Step = "slot"
	StepLabel    Step = "label"
	StepValue    Step = "value"
	StepDone     Step = "done"
	StepCanceled Step = "canceled"
)

// Input is the shape of input a step accepts.
type Input int

const (
	InputNone Input = iota
	InputText
	InputButton
	// InputAny accepts both: batch collection takes text and the submit button.
	InputAny
)

// Session is the in-progress state of one flow for one participant.
type Session interface {
	Kind() Kind
	Step() Step
	Expects() Input
}

// Terminal reports whether step ends a flow.
func Terminal(step Step) bool {
	return step == StepDone || step == StepCanceled
}

// FSM validates step transitions.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates the transition table shared by all flows.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepSelect:   {StepDone, StepCanceled},
			StepName:     {StepCategory, StepCanceled},
			StepCategory: {StepBody, StepCanceled},
			StepBody:     {StepDone, StepCanceled},
			StepCollect:  {StepDone, StepCanceled},
			StepRoom:     {StepSlot, StepCanceled},
			StepSlot:     {StepLabel, StepCanceled},
			StepLabel:    {StepDone, StepCanceled},
			StepValue:    {StepDone, StepCanceled},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when an input does not fit the current step.
var ErrInvalidTransition = errors.New("invalid session transition")

// check returns ErrInvalidTransition unless from may move to "to".
func (f *FSM) check(from, to Step) error {
	if !f.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// advance moves *step to "to" if allowed.
func (f *FSM) advance(step *Step, to Step) error {
	if err := f.check(*step, to); err != nil {
		return err
	}
	*step = to
	return nil
}

var flow = NewFSM()

// Store keeps at most one session per participant.
type Store struct {
	mu sync.Mutex
	m  map[int64]Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{m: make(map[int64]Session)}
}

// Get returns the active session or nil.
func (s *Store) Get(participant int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[participant]
}

// Start replaces whatever the participant had open with sess.
func (s *Store) Start(participant int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[participant] = sess
}

// Reset discards the participant's session and reports whether one was open.
func (s *Store) Reset(participant int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[participant]
	delete(s.m, participant)
	return ok
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
